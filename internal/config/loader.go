package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/internal/domain/selection"
)

// Environment variable naming the optional YAML file, and the prefix of
// per-key overrides.
const (
	EnvConfigFile = "MASKGEN_CONFIG"
	envPrefix     = "MASKGEN_"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if MASKGEN_CONFIG is set
//  3. env (prefix MASKGEN_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MASKGEN_WORKER_COUNT -> worker_count. Keys stay flat.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The config file path itself is not a config key.
	k.Delete("config")

	// Slices are replaced, not merged, when a layer sets them.
	cfg := *base
	cfg.StatusExclusions = nil
	cfg.DropColumns = nil
	cfg.KeepColumns = nil
	cfg.Groups = nil
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if !k.Exists("status_exclusions") {
		cfg.StatusExclusions = base.StatusExclusions
	}
	if !k.Exists("drop_columns") {
		cfg.DropColumns = base.DropColumns
	}
	if !k.Exists("keep_columns") {
		cfg.KeepColumns = base.KeepColumns
	}
	if !k.Exists("groups") {
		cfg.Groups = base.Groups
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshalConf decodes into out. Comma-separated env values fill slice
// keys, e.g. MASKGEN_STATUS_EXCLUSIONS=Rejected,Untrusted.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Metadata:         nil,
			Result:           out,
			WeaklyTypedInput: true,
		},
	}
}

// Validate checks values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.DataDir) == "" {
		add("data_dir must not be empty")
	}
	for key, v := range map[string]string{
		"catalog_file": c.CatalogFile, "chip_catalog_file": c.ChipCatalogFile,
		"fields_file": c.FieldsFile, "images_dir": c.ImagesDir,
		"masks_dir": c.MasksDir, "result_file": c.ResultFile,
	} {
		if strings.TrimSpace(v) == "" {
			add("%s must not be empty", key)
		}
	}
	switch c.SrcCol {
	case "image", "chip":
	default:
		add("src_col must be image or chip, got %q", c.SrcCol)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}
	if !model.HasNumericField(c.RankField) {
		add("rank_field %q is not a numeric column", c.RankField)
	}
	if c.WorkerCount < 1 {
		add("worker_count must be at least 1, got %d", c.WorkerCount)
	}
	if c.QueueSize < 1 {
		add("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.TaskTimeout <= 0 {
		add("task_timeout must be positive")
	}
	if c.ProgressInterval <= 0 {
		add("progress_interval must be positive")
	}
	if c.FetchRatePerSec <= 0 {
		add("fetch_rate_per_sec must be positive")
	}
	if len(c.KeepColumns) == 0 {
		add("keep_columns must not be empty")
	}

	groups, err := selection.ParseGroups(c.Groups)
	if err != nil {
		add("groups: %v", err)
	} else if err := selection.ValidateGroups(groups, c.AllowGroupOverlap); err != nil {
		add("groups: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
