// Package config loads the followweb YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML documents can say "2h" or "15s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full configuration document. Zero values fall back to the
// defaults from Default().
type Config struct {
	CheckpointDir string `yaml:"checkpoint_dir"`
	BackupDir     string `yaml:"backup_dir"`
	CatalogURL    string `yaml:"catalog_url"`

	Crawl struct {
		Query             string   `yaml:"query"`
		Mode              string   `yaml:"mode"` // search | relationships | mixed
		PageSize          int      `yaml:"page_size"`
		SimilarPerItem    int      `yaml:"similar_per_item"`
		MixedEvery        int      `yaml:"mixed_every"`
		MaxRequests       int      `yaml:"max_requests"`
		MaxDuration       Duration `yaml:"max_duration"`
		RequestsPerSecond float64  `yaml:"requests_per_second"`
		CheckpointEvery   int      `yaml:"checkpoint_every"`
	} `yaml:"crawl"`

	Backup struct {
		Interval      int      `yaml:"interval"` // nodes between backups
		Keep          int      `yaml:"keep"`
		MaxAge        Duration `yaml:"max_age"`
		CompressAfter Duration `yaml:"compress_after"`
	} `yaml:"backup"`

	Coord struct {
		StatusFile    string   `yaml:"status_file"`
		LockStaleness Duration `yaml:"lock_staleness"`
		MaxWait       Duration `yaml:"max_wait"`
		BaseDelay     Duration `yaml:"base_delay"`
	} `yaml:"coord"`

	Validate struct {
		BatchSize  int     `yaml:"batch_size"`
		SampleSize int     `yaml:"sample_size"`
		Jaccard    float64 `yaml:"jaccard_threshold"`
	} `yaml:"validate"`
}

// Default returns the configuration the nightly jobs run with.
func Default() Config {
	var c Config
	c.CheckpointDir = "checkpoint"
	c.BackupDir = "backups"
	c.CatalogURL = "https://api.catalog.example/v3"

	c.Crawl.Mode = "mixed"
	c.Crawl.PageSize = 150
	c.Crawl.SimilarPerItem = 10
	c.Crawl.MixedEvery = 3
	c.Crawl.MaxRequests = 400
	c.Crawl.CheckpointEvery = 25

	c.Backup.Interval = 500
	c.Backup.Keep = 10
	c.Backup.MaxAge = Duration(30 * 24 * time.Hour)
	c.Backup.CompressAfter = Duration(7 * 24 * time.Hour)

	c.Coord.StatusFile = "scheduler_status.json"
	c.Coord.LockStaleness = Duration(2 * time.Hour)
	c.Coord.MaxWait = Duration(10 * time.Minute)
	c.Coord.BaseDelay = Duration(15 * time.Second)

	c.Validate.BatchSize = 150
	c.Validate.SampleSize = 300
	c.Validate.Jaccard = 0.5
	return c
}

// Load reads path over the defaults. A missing file just returns defaults;
// a malformed one is an error.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, nil
}
