package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const defaultGupshupEndpoint = "https://api.gupshup.io/sm/api/v1/msg"

// AppConfig holds all configuration for the application
type AppConfig struct {
	// Poll cycle
	Delay          time.Duration // DELAY, minutes
	RetryThreshold int           // RETRYTHRESHOLD
	PMMarker       string        // TIMEFORMAT, the marker that means "add 12 hours"
	Timezone       *time.Location
	ZoneOffsets    string // "IST=0,EST=-9h30m"
	CronSpecPoll   string

	// Record store
	StoreBackend    string
	SpreadsheetID   string
	SpreadsheetName string // tab name, used as read range and write prefix
	CredentialsFile string // APIFILE, service account JSON
	DatabaseURL     string
	SQLitePath      string

	// Messaging gateway
	GupshupEndpoint          string
	GupshupAPIKey            string // APIKEY
	SourcePhone              string // SRCPH
	BotName                  string // BOTNAME
	GatewayRequestsPerMinute int
	GatewayTimeout           time.Duration

	// Message content
	ReminderLeadMinutes int
	MessageSignature    string

	// Operator bot, optional
	TelegramToken   string
	AdminTelegramID int64

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	delayMinutes, err := intEnv("DELAY", 30)
	if err != nil {
		return nil, err
	}
	if delayMinutes <= 0 {
		return nil, fmt.Errorf("DELAY must be positive, got %d", delayMinutes)
	}
	cfg.Delay = time.Duration(delayMinutes) * time.Minute

	cfg.RetryThreshold, err = intEnv("RETRYTHRESHOLD", 3)
	if err != nil {
		return nil, err
	}

	cfg.PMMarker = envOr("TIMEFORMAT", "PM")

	tzName := envOr("TIMEZONE", "Local")
	cfg.Timezone, err = time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}
	cfg.ZoneOffsets = envOr("ZONE_OFFSETS", "IST=0,EST=-9h30m")
	cfg.CronSpecPoll = envOr("CRON_SPEC_POLL", "*/5 * * * *") // Default: every 5 minutes

	cfg.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", BackendSheets))
	switch cfg.StoreBackend {
	case BackendSheets:
		if cfg.SpreadsheetID = os.Getenv("SPREADSHEET_ID"); cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("SPREADSHEET_ID is not set")
		}
		cfg.SpreadsheetName = envOr("SPREADSHEETNAME", "Class Schedule")
		if cfg.CredentialsFile = os.Getenv("APIFILE"); cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("APIFILE is not set")
		}
	case BackendPostgres:
		if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case BackendSQLite:
		cfg.SQLitePath = envOr("SQLITE_PATH", "./schedule.db")
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.GupshupEndpoint = envOr("GUPSHUP_ENDPOINT", defaultGupshupEndpoint)
	if cfg.GupshupAPIKey = os.Getenv("APIKEY"); cfg.GupshupAPIKey == "" {
		return nil, fmt.Errorf("APIKEY is not set")
	}
	if cfg.SourcePhone = os.Getenv("SRCPH"); cfg.SourcePhone == "" {
		return nil, fmt.Errorf("SRCPH is not set")
	}
	if cfg.BotName = os.Getenv("BOTNAME"); cfg.BotName == "" {
		return nil, fmt.Errorf("BOTNAME is not set")
	}
	cfg.GatewayRequestsPerMinute, err = intEnv("GATEWAY_REQUESTS_PER_MINUTE", 60)
	if err != nil {
		return nil, err
	}
	timeout := envOr("GATEWAY_TIMEOUT", "15s")
	cfg.GatewayTimeout, err = time.ParseDuration(timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	cfg.ReminderLeadMinutes, err = intEnv("REMINDER_LEAD_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	// .env files cannot hold real newlines in unquoted values.
	cfg.MessageSignature = strings.ReplaceAll(envOr("MESSAGE_SIGNATURE", `Team Wizaru\nwww.wizaru.com`), `\n`, "\n")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
