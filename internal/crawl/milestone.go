package crawl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
	"github.com/AlexM1010/FollowWeb-sub000/internal/synth"
	"github.com/AlexM1010/FollowWeb-sub000/internal/validate"
)

// MilestoneOutcome collects the results of the side jobs fired when the
// graph crosses a backup interval boundary.
type MilestoneOutcome struct {
	BackupName    string           `json:"backup_name,omitempty"`
	BackupError   string           `json:"backup_error,omitempty"`
	PrunedBackups []string         `json:"pruned_backups,omitempty"`
	SynthCounts   *synth.Counts    `json:"synth_counts,omitempty"`
	SynthError    string           `json:"synth_error,omitempty"`
	Validation    *validate.Result `json:"validation,omitempty"`
}

// runMilestone spawns the milestone jobs concurrently, each against the
// just-saved checkpoint rather than the live crawl state, and joins them.
// Only the validation job's failure propagates; backup and synthesis
// report their errors in the outcome but never block the run.
func (c *Crawler) runMilestone(ctx context.Context, nodeCount int) (*MilestoneOutcome, error) {
	outcome := &MilestoneOutcome{}
	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		name, err := c.Backups.Upload(c.Checkpoints.Dir, nodeCount, time.Now())
		if err != nil {
			outcome.BackupError = err.Error()
			c.Log.WithError(err).Error("milestone backup failed")
			return nil
		}
		outcome.BackupName = name
		pruned, err := c.Backups.ApplyRetention(time.Now())
		if err != nil {
			outcome.BackupError = err.Error()
			c.Log.WithError(err).Error("backup retention failed")
			return nil
		}
		outcome.PrunedBackups = pruned
		return nil
	})

	grp.Go(func() error {
		counts, err := c.synthOnCopy()
		if err != nil {
			outcome.SynthError = err.Error()
			c.Log.WithError(err).Error("milestone edge synthesis failed")
			return nil
		}
		outcome.SynthCounts = counts
		return nil
	})

	if c.Validator != nil {
		grp.Go(func() error {
			res, err := c.validateOnCopy(ctx)
			outcome.Validation = res
			if err != nil {
				c.Log.WithError(err).Error("milestone validation failed")
			}
			return err
		})
	}

	if err := grp.Wait(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// validateOnCopy runs a partial validation pass on a private copy of the
// checkpoint, so it can proceed concurrently with the crawl without shared
// mutable state. Findings are reported; the scheduled validate job applies
// them durably.
func (c *Crawler) validateOnCopy(ctx context.Context) (*validate.Result, error) {
	dir, cleanup, err := c.copyCheckpoint()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	g, st, _, err := checkpoint.NewManager(dir).Load()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return c.Validator.Run(ctx, g, st, validate.ModePartial)
}

// synthOnCopy previews edge synthesis counts on a private checkpoint copy.
func (c *Crawler) synthOnCopy() (*synth.Counts, error) {
	dir, cleanup, err := c.copyCheckpoint()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	g, st, _, err := checkpoint.NewManager(dir).Load()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	counts, err := synth.Run(g, st, synth.Options{JaccardThreshold: 0.5, SkipTagSimilarity: true})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

// copyCheckpoint clones the current checkpoint into a temp dir.
func (c *Crawler) copyCheckpoint() (string, func(), error) {
	dir, err := os.MkdirTemp("", "followweb-milestone-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	for _, f := range []string{checkpoint.TopologyFile, checkpoint.MetadataFile, checkpoint.RunMetaFile} {
		if err := copyArtifact(c.Checkpoints.Dir, dir, f); err != nil {
			cleanup()
			return "", nil, err
		}
	}
	return dir, cleanup, nil
}

func copyArtifact(srcDir, dstDir, name string) error {
	data, err := os.ReadFile(filepath.Join(srcDir, name))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dstDir, name), data, 0o644)
}
