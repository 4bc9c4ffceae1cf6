package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/extrahours/overtime"
)

var recalcClientID string

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Run the recalculation job once",
	Long: `Recomputes every user's generated extra hours, normalises legacy
bank ids on usage records and records a heartbeat. Same job as
GET /api/cron, for use from an external scheduler.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)

		store, svc, err := openService(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := svc.Recalculate(cmd.Context(), recalcClientID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed users: %d\n", res.ProcessedUsers)
		fmt.Fprintf(out, "updated records: %d\n", res.UpdatedRecords)
		for user, hours := range res.Generated {
			fmt.Fprintf(out, "  %s: %s generated\n", user, overtime.FormatHours(hours))
		}
		return nil
	},
}

func init() {
	recalculateCmd.Flags().StringVar(&recalcClientID, "client-id", overtime.HealthCheckClientID, "heartbeat client id")
}
