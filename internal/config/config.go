package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// Default reminder window, UTC hours
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
)

// Config holds the process-wide settings
type Config struct {
	TelegramToken         string
	DBType                string
	DatabaseURL           string // Postgres DSN
	DataDir               string // Directory for the sqlite file
	LogMode               string
	NotificationStartHour int
	NotificationEndHour   int
	ReviewDueLimit        int
}

// Load reads .env (when present) and the environment
func Load() (*Config, error) {
	// Missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_type", DBTypeSQLite)
	v.SetDefault("data_dir", "data")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("notification_start_hour", DefaultNotificationStartHour)
	v.SetDefault("notification_end_hour", DefaultNotificationEndHour)
	v.SetDefault("review_due_limit", 20)

	cfg := &Config{
		TelegramToken:         v.GetString("telegram_bot_token"),
		DBType:                strings.ToLower(v.GetString("db_type")),
		DatabaseURL:           v.GetString("database_url"),
		DataDir:               v.GetString("data_dir"),
		LogMode:               v.GetString("log_mode"),
		NotificationStartHour: v.GetInt("notification_start_hour"),
		NotificationEndHour:   v.GetInt("notification_end_hour"),
		ReviewDueLimit:        v.GetInt("review_due_limit"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and driver requirements
func (c *Config) Validate() error {
	switch c.DBType {
	case DBTypeSQLite:
	case DBTypePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_TYPE=postgres")
		}
	default:
		return errors.Errorf("unknown DB_TYPE %q", c.DBType)
	}
	if c.NotificationStartHour < 0 || c.NotificationStartHour > 23 {
		return errors.Errorf("NOTIFICATION_START_HOUR %d out of range [0, 23]", c.NotificationStartHour)
	}
	if c.NotificationEndHour < 0 || c.NotificationEndHour > 23 {
		return errors.Errorf("NOTIFICATION_END_HOUR %d out of range [0, 23]", c.NotificationEndHour)
	}
	if c.NotificationStartHour > c.NotificationEndHour {
		return errors.Errorf("notification window %d-%d is empty", c.NotificationStartHour, c.NotificationEndHour)
	}
	if c.ReviewDueLimit <= 0 {
		return errors.Errorf("REVIEW_DUE_LIMIT must be positive, got %d", c.ReviewDueLimit)
	}
	return nil
}
