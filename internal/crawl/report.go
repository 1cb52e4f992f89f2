package crawl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Report is the machine-readable status every run emits, so failures are
// diagnosable without log-scraping.
type Report struct {
	RunID      string `json:"run_id"`
	Mode       Mode   `json:"mode"`
	StartedAt  int64  `json:"started_at"`  // Unix millis
	FinishedAt int64  `json:"finished_at"` // Unix millis
	Skipped    bool   `json:"skipped"`     // coordinator declined the run

	Processed        int    `json:"processed"`      // nodes added this run
	KnownSkipped     int    `json:"known_skipped"`  // already-collected ids, zero API cost
	UnitsSkipped     int    `json:"units_skipped"`  // units dropped after retries
	RequestsUsed     int    `json:"requests_used"`
	NodeCount        int    `json:"node_count"`
	EdgeCount        int    `json:"edge_count"`
	PendingRemaining int    `json:"pending_remaining"`
	StopReason       string `json:"stop_reason,omitempty"`

	Milestone *MilestoneOutcome `json:"milestone,omitempty"`
}

// reportFile is the sibling the run report is written to.
const reportFile = "last_run.json"

// Write persists the report next to the checkpoint artifacts.
func (r *Report) Write(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, reportFile), data, 0o644)
}

// ReadReport loads the last run report from dir.
func ReadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, reportFile))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run report: %w", err)
	}
	return &r, nil
}
