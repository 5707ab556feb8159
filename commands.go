package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/inquizitive/internal/backup"
	"github.com/example/inquizitive/internal/bot"
	"github.com/example/inquizitive/internal/config"
	"github.com/example/inquizitive/internal/database"
	"github.com/example/inquizitive/internal/excel"
	"github.com/example/inquizitive/internal/review"
	"github.com/example/inquizitive/internal/scheduler"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

// env bundles what every store-backed command needs
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *sqlx.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Sync()
		return nil, errors.Wrap(err, "connecting to database")
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) close() {
	e.db.Close()
	e.log.Sync()
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Telegram bot and the reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		reviews := review.NewService(e.db, e.log, review.WithDueLimit(e.cfg.ReviewDueLimit))
		b, err := bot.New(e.cfg.TelegramToken, reviews, e.db, e.log)
		if err != nil {
			return err
		}
		reminders := scheduler.New(e.db, b, scheduler.Window{
			StartHour: e.cfg.NotificationStartHour,
			EndHour:   e.cfg.NotificationEndHour,
		}, e.log)

		b.SetReminders(reminders)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e.log.Info("inquizitive running", "db_type", e.cfg.DBType)
		return runAll(ctx, b.Start, reminders)
	},
}

// backgroundJob is a service started once and stopped on shutdown
type backgroundJob interface {
	Start(ctx context.Context) error
	Stop()
}

// runAll runs the bot and the background jobs until ctx is done or one of
// them fails. A bot that stops on its own, e.g. with bot.ErrUpdatesClosed,
// shuts the jobs down too.
func runAll(ctx context.Context, serve func(context.Context) error, jobs ...backgroundJob) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(ctx)
	})
	for _, job := range jobs {
		g.Go(func() error {
			if err := job.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			job.Stop()
			return nil
		})
	}
	return g.Wait()
}

// --- schedule ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute the next SM-2 state for a grade",
	Long: `Compute the next SM-2 state for a grade without touching the store.

Examples:
  inquizitive schedule --grade 5
  inquizitive schedule --interval 6 --repetition 2 --ease 2.6 --grade 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetInt("interval")
		repetition, _ := cmd.Flags().GetInt("repetition")
		ease, _ := cmd.Flags().GetFloat64("ease")
		grade, _ := cmd.Flags().GetInt("grade")
		from, _ := cmd.Flags().GetString("from")

		now := time.Now().UTC()
		if from != "" {
			t, err := time.Parse("2006-01-02", from)
			if err != nil {
				return errors.Wrap(err, "invalid --from date")
			}
			now = t
		}

		current := sr.State{Interval: interval, Repetition: repetition, EaseFactor: ease}
		next, err := sr.NextChecked(current, sr.Grade(grade))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "interval:    %d\n", next.Interval)
		fmt.Fprintf(out, "repetition:  %d\n", next.Repetition)
		fmt.Fprintf(out, "ease_factor: %.2f\n", next.EaseFactor)
		fmt.Fprintf(out, "next_review: %s\n", sr.NextReviewDate(now, next.Interval).Format("2006-01-02"))
		return nil
	},
}

func init() {
	initial := sr.NewState()
	scheduleCmd.Flags().Int("interval", initial.Interval, "current interval in days")
	scheduleCmd.Flags().Int("repetition", initial.Repetition, "current repetition count")
	scheduleCmd.Flags().Float64("ease", initial.EaseFactor, "current ease factor")
	scheduleCmd.Flags().Int("grade", 0, "recall grade 0-5")
	scheduleCmd.Flags().String("from", "", "review date as YYYY-MM-DD (default today)")
	scheduleCmd.MarkFlagRequired("grade")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import questions from an Excel or CSV file",
	Long: `Import questions from an Excel or CSV file.

Columns: A topic, B question, C answer, D explanation, E options ("|"
separated), F tags ("," separated). The first row is a header.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		subject, _ := cmd.Flags().GetString("subject")
		sheet, _ := cmd.Flags().GetString("sheet")

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		importConfig := excel.DefaultImportConfig()
		importConfig.FilePath = args[0]
		importConfig.Subject = subject
		importConfig.SheetName = sheet

		result, err := excel.NewImporter(e.db, e.log).Import(cmd.Context(), userID, importConfig)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed %d rows: %d created, %d skipped, %d errors\n",
			result.TotalProcessed, result.Created, result.Skipped, len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Fprintf(out, "  %s\n", msg)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Int64("user", 0, "telegram user ID that owns the questions")
	importCmd.Flags().String("subject", models.DefaultSubject, "subject the questions go into")
	importCmd.Flags().String("sheet", "", "sheet to read (default the first one)")
	importCmd.MarkFlagRequired("user")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's data to a JSON backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		path, _ := cmd.Flags().GetString("out")

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		b, err := backup.NewManager(e.db, e.log).Export(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if err := backup.WriteFile(path, b); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d review items to %s\n", len(b.Data.ReviewItems), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().Int64("user", 0, "telegram user ID to export")
	exportCmd.Flags().String("out", "inquizitive-backup.json", "backup file to write")
	exportCmd.MarkFlagRequired("user")
}

// --- restore ---

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Load a JSON backup into a user's data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		modeStr, _ := cmd.Flags().GetString("mode")

		mode, err := backup.ParseMode(modeStr)
		if err != nil {
			return err
		}

		b, err := backup.ReadFile(args[0])
		if err != nil {
			return err
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		result, err := backup.NewManager(e.db, e.log).Import(cmd.Context(), userID, b, mode)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "restored %d new items (%d updated, %d skipped), %d workspaces\n",
			result.Items, result.Updated, result.Skipped, result.Workspaces)
		return nil
	},
}

func init() {
	restoreCmd.Flags().Int64("user", 0, "telegram user ID to restore into")
	restoreCmd.Flags().String("mode", string(backup.Merge), "merge or replace")
	restoreCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(runCmd, scheduleCmd, importCmd, exportCmd, restoreCmd)
}
