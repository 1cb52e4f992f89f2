package coord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked means another live run currently owns the lock.
var ErrLocked = errors.New("coord: lock held by another run")

// LockInfo is the token recording which run owns write access.
type LockInfo struct {
	Owner      string `json:"owner"` // run id (uuid)
	PID        int    `json:"pid"`
	AcquiredAt int64  `json:"acquired_at"` // Unix millis
}

// IsStale reports whether a lock is old enough to reclaim. Pure so it is
// testable without file I/O.
func IsStale(info LockInfo, now time.Time, threshold time.Duration) bool {
	age := now.UnixMilli() - info.AcquiredAt
	return age > threshold.Milliseconds()
}

// FileLock is an advisory lock file: atomic create-if-absent with owner
// and timestamp, auto-reclaimed past the staleness threshold. It deliberately
// trades a narrow race window for not needing a lock service.
type FileLock struct {
	Path  string
	Stale time.Duration
}

// Acquire atomically creates the lock file. If the file already exists and
// its holder is stale, the stale lock is reclaimed and acquisition retried
// once. Returns ErrLocked when a live holder owns it.
func (l *FileLock) Acquire(owner string) error {
	for attempt := 0; attempt < 2; attempt++ {
		info := LockInfo{Owner: owner, PID: os.Getpid(), AcquiredAt: time.Now().UnixMilli()}
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}

		f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil {
				return fmt.Errorf("writing lock file: %w", werr)
			}
			return cerr
		}
		if !os.IsExist(err) {
			return fmt.Errorf("creating lock file: %w", err)
		}

		holder, rerr := l.Read()
		if rerr != nil {
			// Unreadable lock file: treat as held, never as free.
			return ErrLocked
		}
		if !IsStale(*holder, time.Now(), l.Stale) {
			return ErrLocked
		}
		if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reclaiming stale lock: %w", err)
		}
	}
	return ErrLocked
}

// Release removes the lock file if owner still holds it. Releasing a lock
// taken over by someone else is a no-op, not an error.
func (l *FileLock) Release(owner string) error {
	holder, err := l.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if holder.Owner != owner {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read returns the current lock holder.
func (l *FileLock) Read() (*LockInfo, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding lock file: %w", err)
	}
	return &info, nil
}
