package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/backup"
	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/coord"
	"github.com/AlexM1010/FollowWeb-sub000/internal/crawl"
	"github.com/AlexM1010/FollowWeb-sub000/internal/validate"
)

var (
	collectQuery       string
	collectMode        string
	collectMaxRequests int
	collectMaxMinutes  int
	collectJSON        bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one incremental collection pass",
	Long:  "Resumes from the prior checkpoint, discovers items per the configured mode, and checkpoints at intervals and at exit. Skips itself when a conflicting job is in flight.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		log := NewLogger()
		runID := uuid.NewString()

		co, err := NewCoordinator(cfg, log)
		if err != nil {
			return err
		}
		ok, err := co.Acquire(cmd.Context(), coord.JobCollect, runID)
		if err != nil {
			return err
		}
		if !ok {
			// Skip is success: a conflicting job owns the checkpoint.
			report := &crawl.Report{
				RunID:     runID,
				Skipped:   true,
				StartedAt: time.Now().UnixMilli(),
			}
			report.FinishedAt = report.StartedAt
			if err := report.Write(cfg.CheckpointDir); err != nil {
				return err
			}
			return printReport(report, collectJSON)
		}
		defer co.Release(runID)

		crawlCfg := crawl.DefaultConfig()
		crawlCfg.Query = cfg.Crawl.Query
		crawlCfg.PageSize = cfg.Crawl.PageSize
		crawlCfg.SimilarPerItem = cfg.Crawl.SimilarPerItem
		crawlCfg.MixedEvery = cfg.Crawl.MixedEvery
		crawlCfg.MaxRequests = cfg.Crawl.MaxRequests
		crawlCfg.MaxDuration = cfg.Crawl.MaxDuration.Std()
		crawlCfg.RequestsPerSecond = cfg.Crawl.RequestsPerSecond
		crawlCfg.CheckpointEvery = cfg.Crawl.CheckpointEvery
		if collectQuery != "" {
			crawlCfg.Query = collectQuery
		}
		modeStr := cfg.Crawl.Mode
		if collectMode != "" {
			modeStr = collectMode
		}
		if crawlCfg.Mode, err = crawl.ParseMode(modeStr); err != nil {
			return err
		}
		if collectMaxRequests > 0 {
			crawlCfg.MaxRequests = collectMaxRequests
		}
		if collectMaxMinutes > 0 {
			crawlCfg.MaxDuration = time.Duration(collectMaxMinutes) * time.Minute
		}

		client := catalog.NewClient(cfg.CatalogURL)
		crawler := &crawl.Crawler{
			Client:      client,
			Checkpoints: checkpoint.NewManager(cfg.CheckpointDir),
			Backups: &backup.Manager{
				Dest: cfg.BackupDir,
				Policy: backup.Policy{
					Interval:      cfg.Backup.Interval,
					Keep:          cfg.Backup.Keep,
					MaxAge:        cfg.Backup.MaxAge.Std(),
					CompressAfter: cfg.Backup.CompressAfter.Std(),
				},
				Log: log,
			},
			Validator: &validate.Validator{
				Client:     client,
				BatchSize:  cfg.Validate.BatchSize,
				SampleSize: cfg.Validate.SampleSize,
				Log:        log,
			},
			Config: crawlCfg,
			Log:    log,
		}

		report, runErr := crawler.Run(cmd.Context())
		report.RunID = runID
		if werr := report.Write(cfg.CheckpointDir); werr != nil && runErr == nil {
			runErr = werr
		}
		if perr := printReport(report, collectJSON); perr != nil && runErr == nil {
			runErr = perr
		}
		return runErr
	},
}

func printReport(r *crawl.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	if r.Skipped {
		fmt.Println("Run skipped: conflicting job in flight.")
		return nil
	}
	fmt.Printf("Run %s: %d new nodes, %d requests, %d known skipped, %d units skipped\n",
		shortID(r.RunID), r.Processed, r.RequestsUsed, r.KnownSkipped, r.UnitsSkipped)
	fmt.Printf("Graph: %d nodes, %d edges, %d pending (stop: %s)\n",
		r.NodeCount, r.EdgeCount, r.PendingRemaining, r.StopReason)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	collectCmd.Flags().StringVar(&collectQuery, "query", "", "Override search query")
	collectCmd.Flags().StringVar(&collectMode, "mode", "", "Discovery mode: search, relationships, mixed")
	collectCmd.Flags().IntVar(&collectMaxRequests, "max-requests", 0, "Override request ceiling")
	collectCmd.Flags().IntVar(&collectMaxMinutes, "max-minutes", 0, "Override wall-clock ceiling")
	collectCmd.Flags().BoolVar(&collectJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(collectCmd)
}
