package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("UPCOMING_PAYMENT_DAYS", "")

	cfg := LoadConfig()

	assert.Equal(t, ":memory:", cfg.Database.GetDSN())
	assert.False(t, cfg.Lease.PreserveLedgerHistory)
	assert.Equal(t, []int{0, 3, 7}, cfg.Notify.UpcomingDayOffsets)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("PRESERVE_LEDGER_HISTORY", "true")
	t.Setenv("UPCOMING_PAYMENT_DAYS", "1, 2")
	t.Setenv("NOTIFY_HOUR", "not-a-number")

	cfg := LoadConfig()

	assert.Contains(t, cfg.Database.GetDSN(), "host=db.internal port=6543")
	assert.True(t, cfg.Lease.PreserveLedgerHistory)
	assert.Equal(t, []int{1, 2}, cfg.Notify.UpcomingDayOffsets)
	assert.Equal(t, 8, cfg.Notify.Hour)
}

func TestSetupDatabaseSQLite(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: ":memory:"}}

	db, err := SetupDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	// running the schema twice is harmless
	require.NoError(t, CreateTables(db))

	var n int
	require.NoError(t, db.Get(&n, db.Rebind("SELECT COUNT(*) FROM leases WHERE unit_id = ?"), "u"))
	assert.Zero(t, n)
}
