package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"smoothieq/internal/config"
)

var skipConfigLoad = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create, check, or print the configuration file",
	}
	configCmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, err := os.Stat(target)
				switch {
				case err == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Set smoothie.executable or smoothie.search_dir if smoothie-rs is not on PATH.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func resolveInitTarget(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		target, err := config.ExpandPath(raw)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return target, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report where state will live",
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			source := path
			if !exists {
				source += " (not found, using defaults)"
			}
			summary := [][2]string{
				{"Config path", source},
				{"State directory", cfg.Paths.StateDir},
				{"Log directory", cfg.Paths.LogDir},
				{"History enabled", yesNo(cfg.History.Enabled)},
				{"Notifications", yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != "")},
			}
			out := cmd.OutOrStdout()
			for _, entry := range summary {
				fmt.Fprintf(out, "%s: %s\n", entry[0], entry[1])
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
