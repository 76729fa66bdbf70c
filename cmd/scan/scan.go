// Package scan implements the one-shot instance scan command.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/godocscan/cmd/common"
	"github.com/jonesrussell/godocscan/internal/domain"
)

// Command returns the scan command.
func Command(debug *bool) *cobra.Command {
	var (
		instanceID string
		allDue     bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan instances for new documents",
		Long: `Scan one instance, or every instance whose scheduled scan time has
passed, and queue new documents for analysis. Queue processing is not
started; use the serve daemon or the queue process command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceID == "" && !allDue {
				return errors.New("either --instance or --all-due is required")
			}
			return run(cmd.Context(), *debug, instanceID, allDue)
		},
	}

	cmd.Flags().StringVar(&instanceID, "instance", "", "instance ID to scan")
	cmd.Flags().BoolVar(&allDue, "all-due", false, "scan every instance that is due")

	return cmd
}

func run(ctx context.Context, debug bool, instanceID string, allDue bool) error {
	deps, err := common.BuildDeps(ctx, viper.GetViper(), debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	services := common.BuildServices(deps)

	var results []domain.ScanResult
	if allDue {
		results, err = services.Scanner.ScanDueInstances(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan due instances: %w", err)
		}
	} else {
		results = append(results, services.Scanner.ScanInstance(ctx, instanceID))
	}

	renderResults(results)

	for _, r := range results {
		if r.Error != "" {
			return fmt.Errorf("scan of instance %s failed: %s", r.InstanceID, r.Error)
		}
	}
	return nil
}

func renderResults(results []domain.ScanResult) {
	if len(results) == 0 {
		fmt.Println("No instances were due for scanning")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Instance", "Queued", "Processed", "Already Queued", "Error"})

	for _, r := range results {
		name := r.InstanceName
		if name == "" {
			name = r.InstanceID
		}
		t.AppendRow(table.Row{
			name,
			r.DocumentsQueued,
			r.DocumentsAlreadyProcessed,
			r.DocumentsAlreadyQueued,
			r.Error,
		})
	}

	t.Render()
}
