package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/storage/models"
)

var forceSync bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync of all active import links and print the results",
	Long: `Fetch every active partner feed once and reconcile it into the
reservation store. Links fetched within their partner's recheck interval
are skipped unless --force is given.

The results are printed as JSON: {"results": [...], "summary": {...}}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		exitOnSignal(cancel)

		progress := func(current, total int, outcome models.SyncOutcome) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s: %s\n",
				current, total, outcome.PropertyName, outcome.Partner, outcome.Status)
		}
		results, err := a.orchestrator.RunAll(ctx, forceSync, progress)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("sync interrupted: %w", err)
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Results []models.SyncOutcome `json:"results"`
			Summary models.SyncSummary   `json:"summary"`
		}{results, calendar.Summarize(results)})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&forceSync, "force", false, "ignore the recheck interval")
}
