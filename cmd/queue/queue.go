// Package queue implements queue inspection and maintenance commands.
package queue

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/godocscan/cmd/common"
	"github.com/jonesrussell/godocscan/internal/domain"
)

const defaultListLimit = 50

// Command returns the queue command with its subcommands.
func Command(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the analysis queue",
	}

	cmd.AddCommand(
		newStatsCmd(debug),
		newListCmd(debug),
		newProcessCmd(debug),
		newResetStuckCmd(debug),
	)

	return cmd
}

func newStatsCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status queue entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), *debug, func(ctx context.Context, services *common.Services) error {
				stats, err := services.Processor.QueueStats(ctx)
				if err != nil {
					return fmt.Errorf("failed to get queue stats: %w", err)
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Status", "Count"})
				t.AppendRow(table.Row{"pending", stats.Pending})
				t.AppendRow(table.Row{"processing", stats.Processing})
				t.AppendRow(table.Row{"completed", stats.Completed})
				t.AppendRow(table.Row{"failed", stats.Failed})
				t.Render()
				return nil
			})
		},
	}
}

func newListCmd(debug *bool) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), *debug, func(ctx context.Context, services *common.Services) error {
				entries, err := services.Queue.List(ctx, status, limit, offset)
				if err != nil {
					return fmt.Errorf("failed to list queue entries: %w", err)
				}
				renderEntries(entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "listing offset")

	return cmd
}

func newProcessCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Drain all due pending entries once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), *debug, func(ctx context.Context, services *common.Services) error {
				results := services.Processor.ProcessAllPending(ctx)

				succeeded := 0
				for _, r := range results {
					if r.Success {
						succeeded++
					}
				}
				fmt.Printf("Processed %d entries (%d succeeded, %d failed)\n",
					len(results), succeeded, len(results)-succeeded)
				return nil
			})
		},
	}
}

func newResetStuckCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Reset orphaned processing entries back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), *debug, func(ctx context.Context, services *common.Services) error {
				reset, err := services.Processor.ResetStuckItems(ctx)
				if err != nil {
					return fmt.Errorf("failed to reset stuck entries: %w", err)
				}
				fmt.Printf("Reset %d stuck entries\n", reset)
				return nil
			})
		},
	}
}

// withServices builds dependencies, runs fn, and closes everything.
func withServices(ctx context.Context, debug bool, fn func(context.Context, *common.Services) error) error {
	deps, err := common.BuildDeps(ctx, viper.GetViper(), debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, common.BuildServices(deps))
}

func renderEntries(entries []*domain.QueueEntry) {
	if len(entries) == 0 {
		fmt.Println("No queue entries found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Instance", "Remote Doc", "Status", "Attempts", "Scheduled For", "Last Error"})

	for _, e := range entries {
		lastError := ""
		if e.LastError != nil {
			lastError = *e.LastError
		}
		t.AppendRow(table.Row{
			e.ID,
			e.InstanceID,
			e.RemoteDocumentID,
			e.Status,
			fmt.Sprintf("%d/%d", e.Attempts, e.MaxAttempts),
			e.ScheduledFor.Format("2006-01-02 15:04:05"),
			lastError,
		})
	}

	t.Render()
}
