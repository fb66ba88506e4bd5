package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-inbox/internal/common"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		errMsg  string
		config  Config
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:        "test-client",
				ClientSecret:    "test-secret",
				RefreshToken:    "test-token",
				SpreadsheetName: "Ledger",
				RetryAttempts:   3,
				RetryDelay:      time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "abc",
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:        "test-client",
				ClientSecret:    "", // Missing secret
				RefreshToken:    "test-token",
				SpreadsheetName: "Ledger",
			},
			wantErr: common.ErrMissingConfig,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetName:    "Ledger",
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name: "no spreadsheet",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "spreadsheet id or name is required",
		},
		{
			name: "zero retry delay is valid",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetName:    "Ledger",
				RetryAttempts:      0, // No retries
				RetryDelay:         0, // No delay
			},
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetName:    "Ledger",
				RetryAttempts:      3,
				RetryDelay:         -1 * time.Second,
			},
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	assert.False(t, cfg.HasCredentials())

	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/tmp/key.json")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "Household")
	cfg = DefaultConfig()
	assert.NoError(t, cfg.LoadFromEnv())
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, "Household", cfg.SpreadsheetName)
}
