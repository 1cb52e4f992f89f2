package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/crawl"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run report and checkpoint summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		report, err := crawl.ReadReport(cfg.CheckpointDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No run report found.")
				return nil
			}
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("Last run %s at %s\n", shortID(report.RunID),
			time.UnixMilli(report.StartedAt).Format(time.RFC3339))
		if report.Skipped {
			fmt.Println("Outcome: skipped (conflicting job in flight)")
			return nil
		}
		fmt.Printf("Outcome: %d new nodes, %d requests used, stop: %s\n",
			report.Processed, report.RequestsUsed, report.StopReason)
		fmt.Printf("Graph: %d nodes, %d edges, %d pending\n",
			report.NodeCount, report.EdgeCount, report.PendingRemaining)

		if err := checkpoint.VerifyDir(cfg.CheckpointDir); err != nil {
			fmt.Printf("Checkpoint: INVALID (%v)\n", err)
		} else {
			fmt.Println("Checkpoint: verified")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}
