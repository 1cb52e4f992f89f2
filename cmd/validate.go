package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/catalog"
	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/coord"
	"github.com/AlexM1010/FollowWeb-sub000/internal/validate"
)

var (
	validateModeFlag string
	validateSample   int
	validateJSON     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-verify collected items against the catalog",
	Long:  "Batch-checks that stored items still exist upstream. Missing items are tombstoned with their edges; present ones get their metadata refreshed for free.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		log := NewLogger()
		runID := uuid.NewString()

		mode := validate.Mode(validateModeFlag)
		if mode != validate.ModeFull && mode != validate.ModePartial {
			return fmt.Errorf("unknown validation mode %q (want full or partial)", validateModeFlag)
		}

		co, err := NewCoordinator(cfg, log)
		if err != nil {
			return err
		}
		ok, err := co.Acquire(cmd.Context(), coord.JobValidate, runID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Validation skipped: conflicting job in flight.")
			return nil
		}
		defer co.Release(runID)

		mgr := checkpoint.NewManager(cfg.CheckpointDir)
		g, st, meta, err := mgr.Load()
		if err != nil {
			return err
		}
		defer st.Close()

		sample := cfg.Validate.SampleSize
		if validateSample > 0 {
			sample = validateSample
		}
		v := &validate.Validator{
			Client:     catalog.NewClient(cfg.CatalogURL),
			BatchSize:  cfg.Validate.BatchSize,
			SampleSize: sample,
			Log:        log,
		}

		res, err := v.Run(cmd.Context(), g, st, mode)
		if err != nil {
			return err
		}

		nowMs := time.Now().UnixMilli()
		switch mode {
		case validate.ModeFull:
			meta.Validation.LastFullCheck = nowMs
		case validate.ModePartial:
			meta.Validation.LastPartialCheck = nowMs
		}
		if err := mgr.Save(g, st, meta); err != nil {
			return err
		}

		if validateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Printf("Validated %d items: %d confirmed, %d tombstoned, %d edges removed, %d requests\n",
			res.Checked, res.Confirmed, len(res.Tombstoned), res.EdgesRemoved, res.RequestsUsed)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateModeFlag, "mode", "partial", "Validation mode: full or partial")
	validateCmd.Flags().IntVar(&validateSample, "sample", 0, "Partial mode: items to check (oldest first)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(validateCmd)
}
