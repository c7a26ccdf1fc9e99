// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) builds a Config holding every default.
//   - Load layers a YAML file and MASKGEN_* environment variables on top.
//   - Relative paths are resolved against DataDir with Path.
package config

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/lacunalabels/maskgen/internal/domain/catalog"
	"github.com/lacunalabels/maskgen/internal/domain/selection"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// DataDir is the root holding raw/, interim/, processed/ and logs/.
	DataDir string `koanf:"data_dir"`

	// Inputs.
	CatalogFile     string `koanf:"catalog_file"`
	ChipCatalogFile string `koanf:"chip_catalog_file"`
	FieldsFile      string `koanf:"fields_file"`
	ImagesDir       string `koanf:"images_dir"`

	// Outputs.
	MasksDir   string `koanf:"masks_dir"`
	ResultFile string `koanf:"result_file"`
	// ResultDB enables the SQLite result store when set.
	ResultDB string `koanf:"result_db"`

	// SrcCol names the column holding chip file names: image or chip.
	SrcCol string `koanf:"src_col"`

	// Selection.
	RankField         string           `koanf:"rank_field"`
	StatusExclusions  []string         `koanf:"status_exclusions"`
	DropColumns       []string         `koanf:"drop_columns"`
	KeepColumns       []string         `koanf:"keep_columns"`
	Groups            []map[string]any `koanf:"groups"`
	AllowGroupOverlap bool             `koanf:"allow_group_overlap"`

	// Mask generation.
	WorkerCount      int           `koanf:"worker_count"`
	QueueSize        int           `koanf:"queue_size"`
	TaskTimeout      time.Duration `koanf:"task_timeout"`
	Overwrite        bool          `koanf:"overwrite"`
	Verbose          bool          `koanf:"verbose"`
	ProgressInterval time.Duration `koanf:"progress_interval"`

	// MetricsAddr serves /healthz, /stats and /metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// Fetching (cmd/fetch).
	FetchRatePerSec float64       `koanf:"fetch_rate_per_sec"`
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
}

// DefaultGroups are the assignment groups of the published label catalog:
// verified batches kept whole, redundant batches reduced to the best row.
func DefaultGroups() []map[string]any {
	return []map[string]any{
		{"whole": []any{"1a", "2"}},
		{"best": []any{"1b", "1d"}},
		{"best": "4"},
	}
}

// New creates a Config holding the defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		DataDir:          "/data",
		CatalogFile:      filepath.Join("interim", "label_catalog_allclasses.csv"),
		ChipCatalogFile:  filepath.Join("interim", "label_catalog_int.csv"),
		FieldsFile:       filepath.Join("raw", "mapped_fields_final.geojson"),
		ImagesDir:        filepath.Join("raw", "images"),
		MasksDir:         filepath.Join("processed", "masks"),
		ResultFile:       filepath.Join("processed", "label-catalog-filtered.csv"),
		SrcCol:           "image",
		RankField:        selection.DefaultRankField,
		StatusExclusions: slices.Clone(selection.DefaultStatusExclusions),
		DropColumns:      slices.Clone(catalog.DefaultDropColumns),
		KeepColumns:      slices.Clone(catalog.DefaultKeepColumns),
		Groups:           DefaultGroups(),
		WorkerCount:      4,
		QueueSize:        256,
		TaskTimeout:      10 * time.Minute,
		ProgressInterval: 5 * time.Second,
		FetchRatePerSec:  1,
		FetchTimeout:     30 * time.Minute,
	}
}

// Path resolves p against DataDir unless it is absolute or empty.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// ParsedGroups normalizes Groups.
func (c *Config) ParsedGroups() ([]selection.Group, error) {
	return selection.ParseGroups(c.Groups)
}
