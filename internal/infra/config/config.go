package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
)

const (
	defaultReferenceTablePath = "configs/immunization_schedule_2025.json"
	defaultUpcomingDaysAhead  = 60
	defaultCronSpecDueCheck   = "0 9 * * *" // 9 AM daily
	defaultTimezone           = "Asia/Seoul"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken       string
	DatabaseURL         string
	ReferenceTablePath  string
	WatchReferenceTable bool // Rebuild the calculator when the table file changes
	UpcomingDaysAhead   int
	CronSpecDueCheck    string // Marks pending notifications as due
	Location            *time.Location
	LogLevel            string
	Environment         string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.ReferenceTablePath = os.Getenv("REFERENCE_TABLE_PATH")
	if cfg.ReferenceTablePath == "" {
		cfg.ReferenceTablePath = defaultReferenceTablePath
	}

	cfg.WatchReferenceTable = true
	if raw := os.Getenv("WATCH_REFERENCE_TABLE"); raw != "" {
		cfg.WatchReferenceTable, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_REFERENCE_TABLE: %w", err)
		}
	}

	cfg.UpcomingDaysAhead = defaultUpcomingDaysAhead
	if raw := os.Getenv("UPCOMING_DAYS_AHEAD"); raw != "" {
		cfg.UpcomingDaysAhead, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPCOMING_DAYS_AHEAD: %w", err)
		}
		if cfg.UpcomingDaysAhead < 0 {
			return nil, fmt.Errorf("invalid UPCOMING_DAYS_AHEAD: must not be negative, got %d", cfg.UpcomingDaysAhead)
		}
	}

	cfg.CronSpecDueCheck = os.Getenv("CRON_SPEC_DUE_CHECK")
	if cfg.CronSpecDueCheck == "" {
		cfg.CronSpecDueCheck = defaultCronSpecDueCheck
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = defaultTimezone
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
