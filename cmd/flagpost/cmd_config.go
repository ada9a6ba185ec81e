package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/flagpost/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the runtime applies pending migrations
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			v, err := rt.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", v)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigSetKeyCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config.yaml if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.EnsureFlagpostDir()
			if err != nil {
				return fmt.Errorf("create directories: %w", err)
			}
			w := cmd.OutOrStdout()
			path := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(w, "Configuration already exists at %s\n", path)
				return nil
			}
			if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(w, "Wrote %s\n", path)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <provider> <api-key>",
		Short: "Store an LLM provider API key in secrets.yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			keys := make(map[string]string)
			for name, p := range cfg.Hints.LLM.Providers {
				if p != nil && p.APIKey != "" {
					keys[name] = p.APIKey
				}
			}
			keys[args[0]] = strings.TrimSpace(args[1])

			if err := config.SaveSecrets(keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key for %s\n", args[0])
			return nil
		},
	}
}
