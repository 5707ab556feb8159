package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inquizitive/internal/bot"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScheduleCommand(t *testing.T) {
	out, err := execute(t, "schedule", "--interval", "6", "--repetition", "2", "--ease", "2.6", "--grade", "4", "--from", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "interval:    16\nrepetition:  3\nease_factor: 2.60\nnext_review: 2026-11-04\n", out)
}

func TestScheduleCommandFailingGrade(t *testing.T) {
	out, err := execute(t, "schedule", "--interval", "16", "--repetition", "3", "--ease", "2.6", "--grade", "1", "--from", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "interval:    1\nrepetition:  0\nease_factor: 2.60\nnext_review: 2026-10-20\n", out)
}

func TestScheduleCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "schedule", "--interval", "1", "--repetition", "0", "--ease", "2.5", "--grade", "7", "--from", "2026-10-19")
	assert.ErrorIs(t, err, sr.ErrInvalidGrade)

	_, err = execute(t, "schedule", "--interval", "1", "--repetition", "0", "--ease", "1.1", "--grade", "3", "--from", "2026-10-19")
	assert.ErrorIs(t, err, sr.ErrInvalidState)

	_, err = execute(t, "schedule", "--interval", "1", "--repetition", "0", "--ease", "2.5", "--grade", "3", "--from", "19/10/2026")
	assert.Error(t, err)
}

func TestImportExportRestore(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_MODE", "dev")

	csvPath := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"topic,question,answer\n"+
			"cells,What is ATP?,energy\n"+
			"cells,What is a ribosome?,protein factory\n"+
			",orphan,x\n"), 0644))

	out, err := execute(t, "import", csvPath, "--user", "5", "--subject", "Biology", "--sheet", "")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 3 rows: 2 created, 0 skipped, 1 errors")
	assert.Contains(t, out, "Row 4: topic cannot be empty")

	backupPath := filepath.Join(dir, "backup.json")
	out, err = execute(t, "export", "--user", "5", "--out", backupPath)
	require.NoError(t, err)
	assert.Equal(t, "exported 2 review items to "+backupPath+"\n", out)

	out, err = execute(t, "restore", backupPath, "--user", "6", "--mode", "merge")
	require.NoError(t, err)
	assert.Equal(t, "restored 2 new items (0 updated, 0 skipped), 0 workspaces\n", out)

	out, err = execute(t, "restore", backupPath, "--user", "6", "--mode", "merge")
	require.NoError(t, err)
	assert.Equal(t, "restored 0 new items (2 updated, 0 skipped), 0 workspaces\n", out)

	out, err = execute(t, "restore", backupPath, "--user", "6", "--mode", "replace")
	require.NoError(t, err)
	assert.Equal(t, "restored 2 new items (0 updated, 0 skipped), 0 workspaces\n", out)

	_, err = execute(t, "restore", backupPath, "--user", "6", "--mode", "overwrite")
	assert.Error(t, err)
}

func TestCommandsRequireArgs(t *testing.T) {
	_, err := execute(t, "import")
	assert.Error(t, err)

	_, err = execute(t, "restore")
	assert.Error(t, err)
}

type fakeJob struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (j *fakeJob) Start(ctx context.Context) error {
	j.started.Store(true)
	return nil
}

func (j *fakeJob) Stop() {
	j.stopped.Store(true)
}

func TestRunAllStopsJobsWhenBotQuits(t *testing.T) {
	job := &fakeJob{}
	done := make(chan error, 1)
	go func() {
		done <- runAll(context.Background(), func(context.Context) error {
			return bot.ErrUpdatesClosed
		}, job)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, bot.ErrUpdatesClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("runAll kept running after the bot stopped")
	}
	assert.True(t, job.started.Load())
	assert.True(t, job.stopped.Load())
}

func TestRunAllStopsOnCancel(t *testing.T) {
	job := &fakeJob{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runAll(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, job)
	require.NoError(t, err)
	assert.True(t, job.stopped.Load())
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
