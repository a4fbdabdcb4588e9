package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("APIFILE", "/etc/bot/service-account.json")
	t.Setenv("APIKEY", "key")
	t.Setenv("SRCPH", "917834811114")
	t.Setenv("BOTNAME", "ClassBot")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Delay)
	assert.Equal(t, 3, cfg.RetryThreshold)
	assert.Equal(t, "PM", cfg.PMMarker)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, "IST=0,EST=-9h30m", cfg.ZoneOffsets)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecPoll)
	assert.Equal(t, BackendSheets, cfg.StoreBackend)
	assert.Equal(t, "Class Schedule", cfg.SpreadsheetName)
	assert.Equal(t, defaultGupshupEndpoint, cfg.GupshupEndpoint)
	assert.Equal(t, 60, cfg.GatewayRequestsPerMinute)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 30, cfg.ReminderLeadMinutes)
	assert.Equal(t, "Team Wizaru\nwww.wizaru.com", cfg.MessageSignature)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DELAY", "45")
	t.Setenv("RETRYTHRESHOLD", "5")
	t.Setenv("TIMEFORMAT", "pm")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/var/lib/bot/schedule.db")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_ID", "123456")
	t.Setenv("MESSAGE_SIGNATURE", `Line one\nLine two`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.Delay)
	assert.Equal(t, 5, cfg.RetryThreshold)
	assert.Equal(t, "pm", cfg.PMMarker)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/var/lib/bot/schedule.db", cfg.SQLitePath)
	assert.Equal(t, int64(123456), cfg.AdminTelegramID)
	assert.Equal(t, "Line one\nLine two", cfg.MessageSignature)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero delay", env: map[string]string{"DELAY": "0"}},
		{name: "non numeric retry threshold", env: map[string]string{"RETRYTHRESHOLD": "three"}},
		{name: "unknown timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "mongo"}},
		{name: "postgres without url", env: map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}},
		{name: "missing spreadsheet", env: map[string]string{"SPREADSHEET_ID": ""}},
		{name: "missing api key", env: map[string]string{"APIKEY": ""}},
		{name: "bad gateway timeout", env: map[string]string{"GATEWAY_TIMEOUT": "soon"}},
		{name: "token without admin", env: map[string]string{"TELEGRAM_TOKEN": "token", "ADMIN_TELEGRAM_ID": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
