package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-inbox/internal/common"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SPICE_TEST_DIR", "/var/spice")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "spice.db"), ExpandPath("~/spice.db"))
	assert.Equal(t, "/var/spice/spice.db", ExpandPath("$SPICE_TEST_DIR/spice.db"))
}

func TestPipelineFrom_Defaults(t *testing.T) {
	p, err := pipelineFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 100, p.DedupSoftCap)
	assert.Equal(t, 30*time.Second, p.ProbeInterval)
	assert.Equal(t, 5*time.Second, p.ProbeTimeout)
	assert.Equal(t, 25*time.Second, p.IngestBudget)
	assert.Equal(t, 10*time.Minute, p.DedupTTL)
	assert.Equal(t, "https://www.google.com/generate_204", p.ProbeURL)
	assert.NotContains(t, p.DatabasePath, "$HOME")
	assert.Empty(t, p.MetricsAddr)
}

func TestPipelineFrom_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("database.path", "/tmp/spice/test.db")
	v.Set("sync.max_retries", 5)
	v.Set("sync.probe_interval", "1m")
	v.Set("sync.probe_timeout", "2s")
	v.Set("dedup.ttl", "15m")
	v.Set("metrics.addr", ":9090")

	p, err := pipelineFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/spice/test.db", p.DatabasePath)
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, time.Minute, p.ProbeInterval)
	assert.Equal(t, 2*time.Second, p.ProbeTimeout)
	assert.Equal(t, 15*time.Minute, p.DedupTTL)
	assert.Equal(t, ":9090", p.MetricsAddr)
}

func TestPipelineFrom_Invalid(t *testing.T) {
	tests := []struct {
		value any
		name  string
		key   string
	}{
		{name: "zero retries", key: "sync.max_retries", value: 0},
		{name: "negative ttl", key: "dedup.ttl", value: "-1m"},
		{name: "timeout longer than interval", key: "sync.probe_timeout", value: "45s"},
		{name: "non http probe", key: "sync.probe_url", value: "ftp://example.com"},
		{name: "zero soft cap", key: "dedup.soft_cap", value: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := pipelineFrom(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestSheetsConfigFrom(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(key, "")
	}

	cfg, err := sheetsConfigFrom(viper.New())
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	require.NotNil(t, cfg)
	assert.False(t, cfg.HasCredentials())

	v := viper.New()
	v.Set("sheets.service_account_path", "/etc/spice/key.json")
	v.Set("sheets.spreadsheet_id", "sheet-123")
	v.Set("sheets.retry_attempts", 5)
	cfg, err = sheetsConfigFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "/etc/spice/key.json", cfg.ServiceAccountPath)
	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
	assert.Equal(t, 5, cfg.RetryAttempts)

	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "token")
	cfg, err = sheetsConfigFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
}
