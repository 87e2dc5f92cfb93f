package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLedgerPreview(t *testing.T) {
	out, err := run(t, "ledger", "preview",
		"--start", "2024-01-15", "--end", "2024-03-31",
		"--amount", "310", "--today", "2024-03-10", "--timezone", "UTC")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"2024-01-15", "170.00", "Rent"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"2024-02-01", "310.00", "Rent"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2024-03-01", "310.00", "Rent"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"total", "790.00"}, strings.Fields(lines[3]))
}

func TestLedgerPreviewRejectsBadInput(t *testing.T) {
	_, err := run(t, "ledger", "preview",
		"--start", "2024-01-15", "--end", "2024-03-31",
		"--amount", "310", "--payment-day", "32", "--timezone", "UTC")
	assert.Error(t, err)

	_, err = run(t, "ledger", "preview", "--start", "2024-01-15", "--end", "2024-03-31", "--amount", "lots")
	assert.Error(t, err)

	_, err = run(t, "ledger", "preview", "--start", "2024-01-15")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date (sqlite)")
}

func TestNotifyOnEmptyDatabase(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DEFAULT_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")

	_, err := run(t, "notify")
	assert.NoError(t, err)
}
