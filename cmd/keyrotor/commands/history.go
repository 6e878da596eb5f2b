package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/keyrotor/internal/config"
	"github.com/systmms/keyrotor/internal/rotation"
)

func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var (
		historyDir   string
		limit        int
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "history [task-name]",
		Short: "Show stored rotation records",
		Long: `Display rotation records written by "rotate --history-dir".

Records never contain secret material, only key identifiers, outcomes
and timings.`,
		Example: `  # All records, newest first
  keyrotor history --history-dir ./rotation-history

  # Records for one task
  keyrotor history payments --history-dir ./rotation-history

  # Machine-readable
  keyrotor history --history-dir ./rotation-history --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := ""
			if len(args) > 0 {
				task = args[0]
			}

			history, err := rotation.NewFileHistory(historyDir, cfg.Logger)
			if err != nil {
				return err
			}
			records, err := history.List(task, limit)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}

			if outputFormat == "json" {
				return outputJSON(os.Stdout, records)
			}

			if len(records) == 0 {
				fmt.Println("No rotation records found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TIMESTAMP\tTASK\tOUTCOME\tOLD KEY\tNEW KEY\tDETAIL\n")
			for _, rec := range records {
				detail := rec.Detail
				if len(detail) > 60 {
					detail = detail[:57] + "..."
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.StartedAt.Format("2006-01-02 15:04:05"),
					rec.Task.Name,
					formatOutcome(rec.Result),
					orDash(rec.OldKeyID),
					orDash(rec.NewKeyID),
					orDash(detail),
				)
			}
			_ = w.Flush()

			fmt.Printf("\nShowing %d record(s)\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&historyDir, "history-dir", "./keyrotor-history", "Directory rotation records were written to")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records to show")
	cmd.Flags().StringVar(&outputFormat, "output", "text", "Output format: text, json")

	return cmd
}
