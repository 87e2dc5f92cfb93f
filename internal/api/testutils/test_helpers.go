package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/rentledger-server/internal/api"
	"github.com/rongwang/rentledger-server/internal/config"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/payment"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/service"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Today is the date every API test runs on
var Today = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router       *gin.Engine
	Store        *repository.SQLStore
	Service      service.Service
	Gateway      *StubGateway
	JWTSecret    []byte
	DB           *sqlx.DB
	CompanyID    string
	ManagerID    string
	ManagerToken string
}

// SetupTestContext creates a new test context backed by an in-memory SQLite
// database, with one registered company and its manager
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()
	jwtSecret := "test-secret-key"

	db, err := config.OpenDatabase("sqlite", ":memory:")
	require.NoError(t, err, "Failed to open test database")
	require.NoError(t, config.CreateTables(db), "Failed to create tables")

	store := repository.NewSQLStore(db)
	gateway := &StubGateway{}
	logger := utils.NewNopLogger()

	svc := service.NewDefaultService(store, gateway, logger, service.Options{
		JWTSecret:  jwtSecret,
		Location:   time.UTC,
		Now:        func() time.Time { return Today },
		BcryptCost: bcrypt.MinCost,
	})

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.NewHandler(svc, []byte(jwtSecret), logger).SetupRoutes(router)

	auth, err := svc.RegisterCompany(context.Background(), models.RegisterCompanyRequest{
		CompanyName: "Acme Rentals",
		Email:       "manager@acme.test",
		Password:    "password123",
		Name:        "Mia Manager",
	})
	require.NoError(t, err, "Failed to register test company")

	return &TestContext{
		Router:       router,
		Store:        store,
		Service:      svc,
		Gateway:      gateway,
		JWTSecret:    []byte(jwtSecret),
		DB:           db,
		CompanyID:    auth.CompanyID,
		ManagerID:    auth.UserID,
		ManagerToken: auth.Token,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		t.DB.Close()
	}
}

// StubGateway approves every charge unless Err is set
type StubGateway struct {
	mu      sync.Mutex
	Charges []payment.ChargeRequest
	Err     error
}

func (g *StubGateway) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return "cust-" + email, nil
}

func (g *StubGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Charges = append(g.Charges, req)
	if g.Err != nil {
		return nil, g.Err
	}
	return &payment.Transaction{
		RefNum:        fmt.Sprintf("ref-%d", len(g.Charges)),
		GatewayRefNum: fmt.Sprintf("gw-%d", len(g.Charges)),
		GatewayStatus: "Approved",
		CustomerID:    "cust-" + req.Email,
	}, nil
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body into v
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
