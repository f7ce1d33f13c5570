package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibe/internal/app"
	"vibe/internal/config"
	"vibe/internal/fsutil"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe settings",
	}
	cmd.AddCommand(newConfigInitCmd(flags), newConfigShowCmd(flags))
	return cmd
}

func settingsPath(flags *globalFlags) string {
	if flags.configPath != "" {
		return flags.configPath
	}
	return config.DefaultConfigPath()
}

func newConfigInitCmd(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settingsPath(flags)
			if fsutil.Exists(path) && !force {
				return fmt.Errorf("CFG_INIT: %s already exists, pass --force to overwrite: %w", path, app.ErrValidation)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			return print(cmd.OutOrStdout(), flags.jsonOutput, map[string]string{"path": path}, "wrote "+path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")
	return cmd
}

func newConfigShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(settingsPath(flags))
			if err != nil {
				return fmt.Errorf("%w: %v", app.ErrValidation, err)
			}
			if flags.jsonOutput {
				return print(cmd.OutOrStdout(), true, cfg, "")
			}
			blob, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(blob)
			return err
		},
	}
}
