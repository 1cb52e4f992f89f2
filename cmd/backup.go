package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/backup"
	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/coord"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the checkpoint to backup storage",
	Long:  "Copies the three checkpoint artifacts into a timestamped backup, verifies them there, then applies the retention policy.",
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
		ok, err := co.Acquire(cmd.Context(), coord.JobBackup, runID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Backup skipped: conflicting job in flight.")
			return nil
		}
		defer co.Release(runID)

		// The checkpoint must verify before it is worth copying.
		if err := checkpoint.VerifyDir(cfg.CheckpointDir); err != nil {
			return err
		}
		mgr := checkpoint.NewManager(cfg.CheckpointDir)
		g, st, _, err := mgr.Load()
		if err != nil {
			return err
		}
		nodeCount := g.NodeCount()
		st.Close()

		bm := &backup.Manager{
			Dest: cfg.BackupDir,
			Policy: backup.Policy{
				Interval:      cfg.Backup.Interval,
				Keep:          cfg.Backup.Keep,
				MaxAge:        cfg.Backup.MaxAge.Std(),
				CompressAfter: cfg.Backup.CompressAfter.Std(),
			},
			Log: log,
		}

		name, err := bm.Upload(cfg.CheckpointDir, nodeCount, time.Now())
		if err != nil {
			return err
		}
		pruned, err := bm.ApplyRetention(time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("Backup %s written (%d nodes), %d pruned\n", name, nodeCount, len(pruned))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
