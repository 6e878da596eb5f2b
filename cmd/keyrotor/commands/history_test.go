package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/logging"
	"github.com/systmms/keyrotor/internal/rotation"
)

// captureOutput runs a command and returns what it wrote to stdout.
func captureOutput(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	cmd.SetArgs(args)
	execErr := cmd.Execute()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	require.NoError(t, execErr, "output: %s", buf.String())
	return buf.String()
}

func seedHistory(t *testing.T, dir string) {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, false, true)
	history, err := rotation.NewFileHistory(dir, logger)
	require.NoError(t, err)

	started := time.Now().Add(-time.Hour)
	require.NoError(t, history.Append(rotation.Result{
		Task:        config.TaskConfig{Name: "payments", Store: "prod-vault", SecretPath: "secret/payments"},
		Outcome:     rotation.OutcomeSuccess,
		OldKeyID:    "AKOLD",
		NewKeyID:    "AKNEW",
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}))
	require.NoError(t, history.Append(rotation.Result{
		Task:        config.TaskConfig{Name: "billing", Store: "prod-vault", SecretPath: "secret/billing"},
		Outcome:     rotation.OutcomeFailed,
		FailedAt:    rotation.StateCommit,
		Detail:      "store write failed",
		DualActive:  true,
		OldKeyID:    "AKB1",
		NewKeyID:    "AKB2",
		StartedAt:   started.Add(time.Minute),
		CompletedAt: started.Add(time.Minute + 5*time.Second),
	}))
}

func TestHistoryCommandTable(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}
	cmd := NewHistoryCommand(cfg)

	output := captureOutput(t, cmd, []string{"--history-dir", dir})

	assert.Contains(t, output, "payments")
	assert.Contains(t, output, "billing")
	assert.Contains(t, output, "dual-active")
	assert.Contains(t, output, "Showing 2 record(s)")
}

func TestHistoryCommandFiltersByTask(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}
	cmd := NewHistoryCommand(cfg)

	output := captureOutput(t, cmd, []string{"payments", "--history-dir", dir})

	assert.Contains(t, output, "payments")
	assert.NotContains(t, output, "billing")
	assert.Contains(t, output, "Showing 1 record(s)")
}

func TestHistoryCommandJSON(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}
	cmd := NewHistoryCommand(cfg)

	output := captureOutput(t, cmd, []string{"--history-dir", dir, "--output", "json"})

	var records []rotation.Record
	require.NoError(t, json.Unmarshal([]byte(output), &records))
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.NotEmpty(t, rec.Task.Name)
	}
}

func TestHistoryCommandEmptyDir(t *testing.T) {
	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}
	cmd := NewHistoryCommand(cfg)

	output := captureOutput(t, cmd, []string{"--history-dir", t.TempDir()})

	assert.Contains(t, output, "No rotation records found")
}
