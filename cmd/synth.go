package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/coord"
	"github.com/AlexM1010/FollowWeb-sub000/internal/synth"
)

var (
	synthSkipTags bool
	synthJaccard  float64
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize same-owner, same-group, and tag-similarity edges",
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
		ok, err := co.Acquire(cmd.Context(), coord.JobRepair, runID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Synthesis skipped: conflicting job in flight.")
			return nil
		}
		defer co.Release(runID)

		mgr := checkpoint.NewManager(cfg.CheckpointDir)
		g, st, meta, err := mgr.Load()
		if err != nil {
			return err
		}
		defer st.Close()

		threshold := cfg.Validate.Jaccard
		if cmd.Flags().Changed("jaccard") {
			threshold = synthJaccard
		}
		counts, err := synth.Run(g, st, synth.Options{
			JaccardThreshold:  threshold,
			SkipTagSimilarity: synthSkipTags,
		})
		if err != nil {
			return err
		}
		if err := mgr.Save(g, st, meta); err != nil {
			return err
		}

		fmt.Printf("Edges added: %d same-owner, %d same-group, %d tag-similarity\n",
			counts.SameOwner, counts.SameGroup, counts.TagSimilarity)
		return nil
	},
}

func init() {
	synthCmd.Flags().BoolVar(&synthSkipTags, "skip-tags", false, "Skip the quadratic tag-similarity pass")
	synthCmd.Flags().Float64Var(&synthJaccard, "jaccard", 0.5, "Tag-similarity threshold")
	rootCmd.AddCommand(synthCmd)
}
