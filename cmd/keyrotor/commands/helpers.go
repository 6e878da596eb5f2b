package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/rotation"
	"github.com/systmms/keyrotor/internal/secretstore"
)

// buildStores instantiates every store the selected tasks reference.
func buildStores(cfg *config.Config, tasks []config.TaskConfig) (map[string]secretstore.Store, error) {
	registry := secretstore.NewRegistry(cfg.Logger)

	stores := make(map[string]secretstore.Store)
	for _, task := range tasks {
		if _, ok := stores[task.Store]; ok {
			continue
		}
		sc := cfg.Definition.Stores[task.Store]
		store, err := registry.Create(task.Store, sc.Type, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create store %s: %w", task.Store, err)
		}
		stores[task.Store] = store
	}
	return stores, nil
}

// selectTasks resolves --task flags against the configured task list.
// With no names given, every task is selected.
func selectTasks(def *config.Definition, names []string) ([]config.TaskConfig, error) {
	if len(names) == 0 {
		return def.Tasks, nil
	}
	tasks := make([]config.TaskConfig, 0, len(names))
	for _, name := range names {
		task, err := def.Task(name)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func formatOutcome(r rotation.Result) string {
	switch {
	case r.Outcome == rotation.OutcomeSuccess && len(r.Warnings) > 0:
		return "⚠ success"
	case r.Outcome == rotation.OutcomeSuccess:
		return "✓ success"
	case r.DualActive:
		return "✗ failed (dual-active)"
	case r.OrphanedKey != "":
		return "✗ failed (orphaned key)"
	default:
		return "✗ failed"
	}
}
