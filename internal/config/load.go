package config

import (
	"fmt"
	"os"

	"quotagate/internal/spec"
)

// Load reads, parses, normalizes, and validates a config file. Relative
// journal paths are resolved against the config location.
func Load(path string) (spec.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := spec.ParseConfig(data)
	if err != nil {
		return spec.Config{}, err
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return spec.Config{}, err
	}
	cfg.Journal.Path = ResolvePath(BaseDirFromConfigPath(path), cfg.Journal.Path)
	return cfg, nil
}

// LoadBatch reads and validates a batch file.
func LoadBatch(path string) (spec.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Batch{}, fmt.Errorf("read batch: %w", err)
	}
	batch, err := spec.ParseBatch(data)
	if err != nil {
		return spec.Batch{}, err
	}
	if err := ValidateBatch(&batch); err != nil {
		return spec.Batch{}, err
	}
	return batch, nil
}
