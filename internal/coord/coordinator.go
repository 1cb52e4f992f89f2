package coord

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// JobCategory names one scheduled job family.
type JobCategory string

const (
	JobCollect  JobCategory = "collect"
	JobValidate JobCategory = "validate"
	JobBackup   JobCategory = "backup"
	JobRepair   JobCategory = "repair"
)

// conflicts lists the job categories that must not overlap. The matrix is
// symmetric: ConflictsWith checks both directions.
var conflicts = map[JobCategory][]JobCategory{
	JobCollect:  {JobCollect, JobValidate, JobRepair},
	JobValidate: {JobCollect, JobRepair},
	JobRepair:   {JobCollect, JobValidate, JobBackup},
	JobBackup:   {JobRepair},
}

// ConflictsWith reports whether two job categories may not run together.
func ConflictsWith(a, b JobCategory) bool {
	for _, c := range conflicts[a] {
		if c == b {
			return true
		}
	}
	for _, c := range conflicts[b] {
		if c == a {
			return true
		}
	}
	return false
}

// StatusPoller reports which job categories the scheduler currently has in
// flight. Best effort: an error means "unknown", not "none".
type StatusPoller interface {
	Running(ctx context.Context) ([]JobCategory, error)
}

// FileStatusPoller reads a scheduler status file: a JSON array of category
// names. A missing file means nothing is running.
type FileStatusPoller struct {
	Path string
}

func (p *FileStatusPoller) Running(ctx context.Context) ([]JobCategory, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cats []JobCategory
	if err := json.Unmarshal(data, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Coordinator gates run entry with two layers: scheduler-status polling
// against the conflict matrix, then the advisory file lock. Neither alone
// guarantees exclusivity; together they close all but a narrow race.
type Coordinator struct {
	Poller    StatusPoller
	Lock      *FileLock
	MaxWait   time.Duration // total budget for waiting on conflicts
	BaseDelay time.Duration // first backoff step, doubled each poll
	Log       *logrus.Logger
}

// Acquire blocks until it can claim write access for category cat, or the
// wait budget runs out. Returns ok=false when the run should skip itself:
// skipping is a successful outcome, never a failure.
func (c *Coordinator) Acquire(ctx context.Context, cat JobCategory, owner string) (ok bool, err error) {
	delay := c.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	deadline := time.Now().Add(c.MaxWait)

	for {
		conflict := c.pollConflict(ctx, cat)
		if conflict == "" {
			break
		}
		if time.Now().Add(delay).After(deadline) {
			c.Log.WithFields(logrus.Fields{
				"category": cat,
				"conflict": conflict,
				"max_wait": c.MaxWait,
			}).Warn("exclusivity unconfirmed, skipping run")
			return false, nil
		}
		c.Log.WithFields(logrus.Fields{
			"category": cat,
			"conflict": conflict,
			"delay":    delay,
		}).Info("conflicting job in flight, backing off")
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if err := c.Lock.Acquire(owner); err != nil {
		if err == ErrLocked {
			c.Log.WithField("category", cat).Warn("lock held by another run, skipping")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Release gives back the lock taken by Acquire.
func (c *Coordinator) Release(owner string) error {
	return c.Lock.Release(owner)
}

// pollConflict returns the first in-flight category that conflicts with
// cat, or "" when the coast looks clear. Poll errors read as clear: the
// file lock is the backstop.
func (c *Coordinator) pollConflict(ctx context.Context, cat JobCategory) JobCategory {
	if c.Poller == nil {
		return ""
	}
	running, err := c.Poller.Running(ctx)
	if err != nil {
		c.Log.WithError(err).Debug("scheduler status poll failed")
		return ""
	}
	for _, r := range running {
		if ConflictsWith(cat, r) {
			return r
		}
	}
	return ""
}
