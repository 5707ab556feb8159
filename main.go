package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inquizitive",
	Short: "Spaced repetition review of saved mistakes",
	Long: `Inquizitive schedules the questions you got wrong with SM-2 and
brings them back through a Telegram bot until they stick.

Configuration is read from the environment and an optional .env file:
TELEGRAM_BOT_TOKEN, DB_TYPE, DATABASE_URL, DATA_DIR, LOG_MODE,
NOTIFICATION_START_HOUR, NOTIFICATION_END_HOUR, REVIEW_DUE_LIMIT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
