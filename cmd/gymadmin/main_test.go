package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/membership"
	"gymdesk/internal/notify"
	"gymdesk/internal/primary"
	"gymdesk/internal/store"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GYMDESK_PRIMARY", "none")
	t.Setenv("GYMDESK_ADMIN_PASSWORD", "")
	t.Setenv("GYMDESK_LOG_LEVEL", "error")
}

func startServer(t *testing.T) {
	t.Helper()
	facade := store.New(primary.NewMemory(), nil, nil)
	svc := membership.NewService(facade, membership.Options{})
	srv := httptest.NewServer(membership.NewHandler(svc, notify.NewCenter(), nil, nil).Router())
	t.Cleanup(srv.Close)
	t.Setenv("GYMDESK_API_URL", srv.URL)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSettingsExportImport(t *testing.T) {
	setupEnv(t)
	startServer(t)

	out, err := run(t, "settings", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "gymName: Warriors Gym")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	edited := strings.Replace(out, "gymName: Warriors Gym", "gymName: Warriors Gym Seeb", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o600))

	out, err = run(t, "settings", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Warriors Gym Seeb")

	out, err = run(t, "settings", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "gymName: Warriors Gym Seeb")
}

func TestSettingsYAMLKeepsPrices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSettings(&buf, domain.DefaultSettings()))

	s, err := readSettings(&buf)
	require.NoError(t, err)
	assert.True(t, s.MembershipPrices.Yearly.Equal(decimal.NewFromInt(300)))

	_, err = readSettings(strings.NewReader("gymName: X\nunknown: 1\n"))
	assert.Error(t, err)
}

func TestDashboardAndReport(t *testing.T) {
	setupEnv(t)
	startServer(t)

	out, err := run(t, "dashboard", "--as-of", "2024-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Active members")

	out, err = run(t, "report", "--year", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "March")
	assert.Contains(t, out, "TOTAL")
}

func TestCacheInspect(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "cache.db")
	backend, err := fallback.OpenSQLite(path, nil)
	require.NoError(t, err)
	backend.Set(fallback.KeyNextMemberID, "42")
	fallback.New(backend, nil).SaveSettings(domain.DefaultSettings())
	require.NoError(t, backend.Close())

	out, err := run(t, "cache", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Warriors Gym")
	assert.Contains(t, out, "42")

	_, err = run(t, "cache", "--path", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestDrillOutage(t *testing.T) {
	setupEnv(t)
	t.Setenv("GYMDESK_PRIMARY", "memory")

	out, err := run(t, "drill", "--experiment", "outage", "--duration", "100ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Hypothesis held")

	_, err = run(t, "drill", "--experiment", "meteor")
	assert.Error(t, err)
}
