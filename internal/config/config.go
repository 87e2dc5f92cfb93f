package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Lease     LeaseConfig
	Payment   PaymentConfig
	Notify    NotifyConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	LogLevel  string
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     int
	Username string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite file (or ":memory:") used when Driver is sqlite.
	Path string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
	// TokenHours is the lifetime of issued tokens.
	TokenHours int
}

// LeaseConfig holds lifecycle behaviour switches
type LeaseConfig struct {
	Timezone                string
	PreserveLedgerHistory   bool
	RegisterGatewayCustomer bool
}

// PaymentConfig holds the Cardknox gateway endpoints and credentials
type PaymentConfig struct {
	GatewayURL      string
	APIURL          string
	APIKey          string
	SoftwareName    string
	SoftwareVersion string
	TimeoutSeconds  int
}

// NotifyConfig holds the daily notification schedule
type NotifyConfig struct {
	Enabled            bool
	Hour               int
	GraceBusinessDays  int
	UpcomingDayOffsets []int
	MoveInDayOffsets   []int
	DedupeTTLHours     int
}

// RedisConfig holds the optional Redis connection used for de-duplication
type RedisConfig struct {
	URL string
}

// TelemetryConfig holds the OpenTelemetry exporter settings
type TelemetryConfig struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables. A .env file
// in the working directory is read first when present; variables already set
// in the environment win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Username: getEnv("DB_USERNAME", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "rentledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "rentledger.db"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "your-secret-key-here"),
			TokenHours: getEnvAsInt("JWT_TOKEN_HOURS", 24),
		},
		Lease: LeaseConfig{
			Timezone:                getEnv("DEFAULT_TIMEZONE", "America/New_York"),
			PreserveLedgerHistory:   getEnvAsBool("PRESERVE_LEDGER_HISTORY", false),
			RegisterGatewayCustomer: getEnvAsBool("REGISTER_GATEWAY_CUSTOMER", false),
		},
		Payment: PaymentConfig{
			GatewayURL:      getEnv("CARDKNOX_GATEWAY_URL", "https://x1.cardknox.com/gatewayjson"),
			APIURL:          getEnv("CARDKNOX_API_URL", "https://api.cardknox.com/v2"),
			APIKey:          getEnv("CARDKNOX_API_KEY", ""),
			SoftwareName:    getEnv("CARDKNOX_SOFTWARE_NAME", "rentledger"),
			SoftwareVersion: getEnv("CARDKNOX_SOFTWARE_VERSION", "1.0.0"),
			TimeoutSeconds:  getEnvAsInt("CARDKNOX_TIMEOUT_SECONDS", 30),
		},
		Notify: NotifyConfig{
			Enabled:            getEnvAsBool("NOTIFY_ENABLED", true),
			Hour:               getEnvAsInt("NOTIFY_HOUR", 8),
			GraceBusinessDays:  getEnvAsInt("OVERDUE_GRACE_BUSINESS_DAYS", 3),
			UpcomingDayOffsets: getEnvAsIntSlice("UPCOMING_PAYMENT_DAYS", []int{0, 3, 7}),
			MoveInDayOffsets:   getEnvAsIntSlice("UPCOMING_MOVE_IN_DAYS", []int{14, 7, 1, 0}),
			DedupeTTLHours:     getEnvAsInt("NOTIFY_DEDUPE_TTL_HOURS", 36),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "rentledger-server"),
			Environment:  getEnv("APP_ENV", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsIntSlice reads a comma separated list such as "0,3,7"
func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(valueStr, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
