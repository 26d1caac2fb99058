package cmd

import (
	"fmt"

	"github.com/interruptlabs/header-query-bn/internal/config"
)

// loadConfig resolves the effective configuration: the --config path
// when given, otherwise the nearest .hq/config.yaml walking up from
// the working directory, otherwise defaults.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
