package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"quotagate/internal/config"
)

// configEnvVar names a config file when --config is not given.
const configEnvVar = "QUOTAGATE_CONFIG"

// resolveConfigPath picks the config file from the flag, the environment, or
// a search upward from the working directory, in that order.
func resolveConfigPath(configPath string) (string, error) {
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		configPath = strings.TrimSpace(getenv(configEnvVar))
	}
	if configPath == "" {
		return config.FindConfigPath("")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
