package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlexM1010/FollowWeb-sub000/internal/graph"
	"github.com/AlexM1010/FollowWeb-sub000/internal/store"
)

// Artifact names inside a checkpoint directory. Backups copy all three.
const (
	TopologyFile = "topology.json"
	MetadataFile = "metadata.db"
	RunMetaFile  = "runmeta.json"
)

// ErrNotFound means no checkpoint exists yet: a fresh first run.
var ErrNotFound = errors.New("checkpoint: not found")

// ValidationHistory records when each validation mode last completed.
type ValidationHistory struct {
	LastFullCheck    int64 `json:"last_full_check,omitempty"`
	LastPartialCheck int64 `json:"last_partial_check,omitempty"`
}

// RunMeta is the third checkpoint artifact: counts, timestamps, and the
// resumable search cursor.
type RunMeta struct {
	Timestamp    int64             `json:"timestamp"` // Unix millis of last save
	NodeCount    int               `json:"node_count"`
	EdgeCount    int               `json:"edge_count"`
	ProcessedIDs int               `json:"processed_id_count"`
	SearchCursor int               `json:"search_cursor"` // next search page
	Validation   ValidationHistory `json:"validation_history"`
}

// Manager persists and restores the three-artifact checkpoint.
type Manager struct {
	Dir string
}

// NewManager returns a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{Dir: dir}
}

// Load restores the prior checkpoint. A wholly absent checkpoint returns
// ErrNotFound so the caller starts empty; a partially present one is
// corruption and fails.
func (m *Manager) Load() (*graph.Graph, *store.Store, *RunMeta, error) {
	topoPath := filepath.Join(m.Dir, TopologyFile)
	metaPath := filepath.Join(m.Dir, MetadataFile)
	runPath := filepath.Join(m.Dir, RunMetaFile)

	present := 0
	for _, p := range []string{topoPath, metaPath, runPath} {
		if fi, err := os.Stat(p); err == nil && fi.Size() > 0 {
			present++
		}
	}
	switch present {
	case 0:
		return nil, nil, nil, ErrNotFound
	case 3:
		// fall through to load
	default:
		return nil, nil, nil, fmt.Errorf("checkpoint at %s is partial (%d/3 artifacts): refusing to treat as fresh", m.Dir, present)
	}

	topoData, err := os.ReadFile(topoPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading topology: %w", err)
	}
	g, err := graph.Decode(topoData)
	if err != nil {
		return nil, nil, nil, err
	}

	meta, err := readRunMeta(runPath)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(metaPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return g, st, meta, nil
}

// Open returns the writable metadata store for a fresh checkpoint,
// creating the directory if needed.
func (m *Manager) Open() (*store.Store, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	return store.Open(filepath.Join(m.Dir, MetadataFile))
}

// Save persists all three artifacts, then re-reads and validates each
// before reporting success. A verification failure means the save failed:
// callers must treat the run as failed and not advance any last-good
// pointer.
func (m *Manager) Save(g *graph.Graph, st *store.Store, meta *RunMeta) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	if err := st.Sync(); err != nil {
		return fmt.Errorf("flushing metadata: %w", err)
	}

	topoData, err := g.Encode()
	if err != nil {
		return fmt.Errorf("encoding topology: %w", err)
	}
	if err := writeAtomic(filepath.Join(m.Dir, TopologyFile), topoData); err != nil {
		return err
	}

	meta.NodeCount = g.NodeCount()
	meta.EdgeCount = g.EdgeCount()
	runData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run meta: %w", err)
	}
	if err := writeAtomic(filepath.Join(m.Dir, RunMetaFile), runData); err != nil {
		return err
	}

	return VerifyDir(m.Dir)
}

// VerifyDir re-reads all three artifacts in dir through their real
// decoders. Any missing, empty, or undeserializable artifact is an error.
func VerifyDir(dir string) error {
	topoData, err := os.ReadFile(filepath.Join(dir, TopologyFile))
	if err != nil {
		return fmt.Errorf("verify: reading topology: %w", err)
	}
	if len(topoData) == 0 {
		return fmt.Errorf("verify: topology artifact is empty")
	}
	if _, err := graph.Decode(topoData); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if _, err := readRunMeta(filepath.Join(dir, RunMetaFile)); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	metaPath := filepath.Join(dir, MetadataFile)
	if fi, err := os.Stat(metaPath); err != nil {
		return fmt.Errorf("verify: metadata artifact: %w", err)
	} else if fi.Size() == 0 {
		return fmt.Errorf("verify: metadata artifact is empty")
	}
	ro, err := store.OpenReadOnly(metaPath)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return ro.Close()
}

func readRunMeta(path string) (*RunMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run meta: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("run meta artifact is empty")
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding run meta: %w", err)
	}
	return &meta, nil
}

// writeAtomic writes data to a temp sibling then renames it into place, so
// a crash mid-write never leaves a truncated artifact.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", tmp, err)
	}
	return nil
}
