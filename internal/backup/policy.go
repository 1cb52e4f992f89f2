package backup

import (
	"sort"
	"time"
)

// Policy decides when a backup fires and which old backups to drop.
// All decisions are pure functions over counts and descriptors, so the
// transport mechanism stays out of the picture.
type Policy struct {
	Interval      int           // backup every Interval collected nodes
	Keep          int           // retain at most Keep backups
	MaxAge        time.Duration // drop backups older than this
	CompressAfter time.Duration // compress backups older than this
}

// ShouldBackup fires exactly when the node count crosses an interval
// boundary: count/interval grows past previous/interval. Re-checking the
// same counts never double-fires.
func (p Policy) ShouldBackup(previous, count int) bool {
	if p.Interval <= 0 || count <= previous {
		return false
	}
	return count/p.Interval > previous/p.Interval
}

// Descriptor identifies one stored backup for retention decisions.
type Descriptor struct {
	Name      string
	Timestamp time.Time
	Size      int64
}

// Prune returns the descriptors retention removes: everything beyond Keep
// newest, plus anything older than MaxAge. The single newest backup is
// never removed, whatever the rules say.
func (p Policy) Prune(backups []Descriptor, now time.Time) []Descriptor {
	if len(backups) <= 1 {
		return nil
	}

	sorted := append([]Descriptor(nil), backups...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var drop []Descriptor
	for i, d := range sorted {
		if i == 0 {
			continue // newest survives unconditionally
		}
		if p.Keep > 0 && i >= p.Keep {
			drop = append(drop, d)
			continue
		}
		if p.MaxAge > 0 && now.Sub(d.Timestamp) > p.MaxAge {
			drop = append(drop, d)
		}
	}
	return drop
}
