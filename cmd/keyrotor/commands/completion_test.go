package commands

import (
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/logging"
)

func TestCompletionCommand(t *testing.T) {
	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}

	root := &cobra.Command{Use: "keyrotor"}
	root.AddCommand(NewCompletionCommand(cfg))

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		output := captureOutput(t, root, []string{"completion", shell})
		assert.NotEmpty(t, output, "completion output for %s", shell)
	}
}

func TestCompletionCommandRejectsUnknownShell(t *testing.T) {
	cfg := &config.Config{Logger: logging.NewWithWriter(io.Discard, false, true)}

	root := &cobra.Command{Use: "keyrotor"}
	root.AddCommand(NewCompletionCommand(cfg))
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetArgs([]string{"completion", "tcsh"})

	assert.Error(t, root.Execute())
}
