package main

import (
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/flagpost/internal/config"
	"github.com/felixgeelhaar/flagpost/internal/daemon"
	"github.com/spf13/cobra"
)

// loadConfig reads ~/.flagpost/config.yaml and applies the --db override
func loadConfig(cmd *cobra.Command) (*config.LocalConfig, error) {
	if _, err := config.EnsureFlagpostDir(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = p
	}
	return cfg, nil
}

// openRuntime wires the services for one command. Callers must Close it.
func openRuntime(cmd *cobra.Command) (*daemon.Runtime, *config.LocalConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	password, err := config.RedisPassword()
	if err != nil {
		return nil, nil, err
	}
	opts, err := daemon.OptionsFromLocal(cfg, password)
	if err != nil {
		return nil, nil, err
	}
	opts.Logger = slog.Default()

	rt, err := daemon.New(cmd.Context(), opts)
	if err != nil {
		return nil, nil, err
	}
	return rt, cfg, nil
}
