package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_TYPE", "")
	t.Setenv("NOTIFICATION_START_HOUR", "")
	t.Setenv("NOTIFICATION_END_HOUR", "")
	t.Setenv("REVIEW_DUE_LIMIT", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DBTypeSQLite, cfg.DBType)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, DefaultNotificationStartHour, cfg.NotificationStartHour)
	assert.Equal(t, DefaultNotificationEndHour, cfg.NotificationEndHour)
	assert.Equal(t, 20, cfg.ReviewDueLimit)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DB_TYPE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/inquizitive?sslmode=disable")
	t.Setenv("NOTIFICATION_START_HOUR", "8")
	t.Setenv("NOTIFICATION_END_HOUR", "22")
	t.Setenv("REVIEW_DUE_LIMIT", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, DBTypePostgres, cfg.DBType)
	assert.Equal(t, 8, cfg.NotificationStartHour)
	assert.Equal(t, 22, cfg.NotificationEndHour)
	assert.Equal(t, 5, cfg.ReviewDueLimit)
}

func TestValidate(t *testing.T) {
	valid := Config{DBType: DBTypeSQLite, NotificationStartHour: 4, NotificationEndHour: 18, ReviewDueLimit: 20}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.DBType = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.DBType = DBTypePostgres }},
		{"start hour too large", func(c *Config) { c.NotificationStartHour = 24 }},
		{"negative end hour", func(c *Config) { c.NotificationEndHour = -1 }},
		{"empty window", func(c *Config) { c.NotificationStartHour = 20; c.NotificationEndHour = 10 }},
		{"zero due limit", func(c *Config) { c.ReviewDueLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
