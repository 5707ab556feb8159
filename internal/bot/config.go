package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Long polling timeout in seconds
	UpdateTimeout int
	// How long an idle review session is kept
	SessionTTL time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		UpdateTimeout: 60,
		SessionTTL:    time.Hour * 2,
	}
}
