package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/rotation"
	"github.com/systmms/keyrotor/internal/secretstore"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		taskNames     []string
		concurrency   int
		dryRun        bool
		outputFormat  string
		historyDir    string
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate access keys for configured tasks",
		Long: `Rotate the access key of every selected task.

For each task this mints a new key with the stored credential, verifies
the new key by logging in with it, writes it to the secret store, and
deactivates the old key. Inactive leftovers from earlier rotations are
deleted first to free key quota.

A task whose store write fails is left with two active keys and the old
credential still in the store; rerun the task once the store is healthy.`,
		Example: `  # Rotate every configured task
  keyrotor rotate

  # Rotate selected tasks only
  keyrotor rotate --task payments --task billing

  # Validate configuration and store access without touching any keys
  keyrotor rotate --dry-run

  # Machine-readable results
  keyrotor rotate --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != "text" && outputFormat != "json" {
				return fmt.Errorf("invalid output format %q (use text or json)", outputFormat)
			}

			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			tasks, err := selectTasks(cfg.Definition, taskNames)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks configured")
			}

			stores, err := buildStores(cfg, tasks)
			if err != nil {
				return err
			}

			ctx := context.Background()

			if dryRun {
				return runDryRun(ctx, cfg, tasks, stores)
			}

			if metricsListen != "" {
				rotation.InitMetrics()
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(metricsListen, mux); err != nil {
						cfg.Logger.Warn("metrics listener stopped: %v", err)
					}
				}()
			}

			rotator := rotation.NewRotator(rotation.DefaultClientFactory(cfg.Logger), cfg.Logger)
			runner := rotation.NewRunner(rotator, stores, cfg.Logger, concurrency)

			results := runner.Run(ctx, tasks)

			if historyDir != "" {
				history, err := rotation.NewFileHistory(historyDir, cfg.Logger)
				if err != nil {
					cfg.Logger.Warn("could not open history directory: %v", err)
				} else {
					for _, r := range results {
						if err := history.Append(r); err != nil {
							cfg.Logger.Warn("could not store history record: %v", err)
						}
					}
				}
			}

			if outputFormat == "json" {
				if err := outputJSON(os.Stdout, results); err != nil {
					return err
				}
			} else {
				displayResults(results)
			}

			failed := 0
			for _, r := range results {
				if r.Outcome != rotation.OutcomeSuccess {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rotations failed", failed, len(results))
			}
			cfg.Logger.Info("Rotated %d task(s) successfully", len(results))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&taskNames, "task", nil, "Task to rotate (repeatable; default all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", rotation.DefaultConcurrency, "Maximum tasks rotating at once")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate configuration and store access without rotating")
	cmd.Flags().StringVar(&outputFormat, "output", "text", "Output format: text, json")
	cmd.Flags().StringVar(&historyDir, "history-dir", "", "Directory to store rotation records in")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Address to serve Prometheus metrics on (e.g. :9090)")

	return cmd
}

// runDryRun checks configuration and store access without touching keys.
func runDryRun(ctx context.Context, cfg *config.Config, tasks []config.TaskConfig, stores map[string]secretstore.Store) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "TASK\tSTORE\tSECRET PATH\tIDENTITY API\tTIMEOUT\n")

	failed := 0
	checked := make(map[string]error)
	for _, task := range tasks {
		store := stores[task.Store]
		verr, seen := checked[task.Store]
		if !seen {
			vctx, cancel := context.WithTimeout(ctx, task.Timeout())
			verr = store.Validate(vctx)
			cancel()
			checked[task.Store] = verr
		}

		storeCol := task.Store
		if verr != nil {
			storeCol = "✗ " + storeCol
			failed++
		} else {
			storeCol = "✓ " + storeCol
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.Name, storeCol, task.SecretPath, task.IdentityAPIURL, task.Timeout())
	}
	_ = w.Flush()

	for name, err := range checked {
		if err != nil {
			cfg.Logger.Error("store %s: %v", name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("dry run found unreachable stores")
	}
	cfg.Logger.Info("Dry run passed: %d task(s) ready to rotate", len(tasks))
	return nil
}

// displayResults renders one line per task, in task order.
func displayResults(results []rotation.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "TASK\tOUTCOME\tOLD KEY\tNEW KEY\tDURATION\tDETAIL\n")

	for _, r := range results {
		detail := r.Detail
		if detail == "" && len(r.Warnings) > 0 {
			detail = r.Warnings[0]
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		if detail == "" {
			detail = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Task.Name,
			formatOutcome(r),
			orDash(r.OldKeyID),
			orDash(r.NewKeyID),
			formatDuration(r.CompletedAt.Sub(r.StartedAt)),
			detail,
		)
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
