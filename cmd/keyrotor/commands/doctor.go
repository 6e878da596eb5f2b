package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotor/internal/config"
)

// storeHealth is one row of the doctor report.
type storeHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and secret store connectivity",
		Long: `Verify that the configuration parses, that every task references a
defined store, and that each store is reachable with the configured
credentials. No access keys are touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking keyrotor configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Logger.Info("✓ Configuration loaded: %d store(s), %d task(s)",
				len(cfg.Definition.Stores), len(cfg.Definition.Tasks))

			stores, err := buildStores(cfg, cfg.Definition.Tasks)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var results []storeHealth
			for name, store := range stores {
				health := storeHealth{Name: name, Type: cfg.Definition.Stores[name].Type}

				vctx, cancel := context.WithTimeout(ctx, 15*time.Second)
				verr := store.Validate(vctx)
				cancel()
				if verr != nil {
					health.Error = verr.Error()
				} else {
					health.Healthy = true
				}
				results = append(results, health)
			}

			if outputFormat == "json" {
				if err := outputJSON(os.Stdout, results); err != nil {
					return err
				}
			} else {
				displayStoreHealth(results)
			}

			healthy := 0
			for _, r := range results {
				if r.Healthy {
					healthy++
				}
			}
			if healthy < len(results) {
				return fmt.Errorf("%d of %d stores are not healthy", len(results)-healthy, len(results))
			}

			cfg.Logger.Info("✓ All stores reachable")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputFormat, "output", "text", "Output format: text, json")

	return cmd
}

func displayStoreHealth(results []storeHealth) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "STORE\tTYPE\tSTATUS\tDETAIL\n")

	for _, r := range results {
		status := "✓ healthy"
		detail := "-"
		if !r.Healthy {
			status = "✗ error"
			detail = r.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Type, status, detail)
	}
	_ = w.Flush()
}
