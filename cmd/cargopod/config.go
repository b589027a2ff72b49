// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cargo-pod/internal/config"
)

// newConfigCommand creates the `cargo-pod config` command tree.
func newConfigCommand(app *App, root *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cargo-pod configuration",
		Long: `Manage cargo-pod configuration.

Configuration is read from, in order of preference:
  - the file given with --config
  - ` + config.ConfigFilePath(config.ConfigDir()) + `
  - ./` + config.LocalConfigFile + `

Every key can be overridden with a ` + config.EnvPrefix + `_<KEY> environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app, root)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, root)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.stdout, configFilePath(root))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.Context(), app, root)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func configFilePath(root *rootOptions) string {
	if root.configPath != "" {
		return root.configPath
	}
	return config.ConfigFilePath(config.ConfigDir())
}

func showConfig(cmd *cobra.Command, app *App, root *rootOptions) error {
	cfg, source, err := loadConfig(cmd.Context(), app, root)
	if err != nil {
		renderFailure(app, err, root.verbose)
		return &ExitError{Code: 1, Err: err}
	}

	w := app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	rows := []struct{ key, value string }{
		{"jobs", fmt.Sprint(cfg.Jobs)},
		{"fail_fast", fmt.Sprint(cfg.FailFast)},
		{"profile", string(cfg.Profile)},
		{"missing_toolchain", string(cfg.MissingToolchain)},
		{"targets", strings.Join(cfg.Targets, ", ")},
		{"archive.enabled", fmt.Sprint(cfg.Archive.Enabled)},
		{"archive.format", string(cfg.Archive.Format)},
		{"verify.enabled", fmt.Sprint(cfg.Verify.Enabled)},
		{"verify.timeout", cfg.Verify.Timeout.String()},
		{"deployment_targets.ios", cfg.DeploymentTargets.IOS},
		{"deployment_targets.macos", cfg.DeploymentTargets.MacOS},
		{"work_dir", cfg.WorkDir},
		{"ui.verbose", fmt.Sprint(cfg.UI.Verbose)},
	}
	for _, r := range rows {
		value := valueStyle.Render(r.value)
		if r.value == "" {
			value = SubtitleStyle.Render("(not set)")
		}
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render(r.key), value)
	}
	return nil
}

func initConfig(app *App, root *rootOptions) error {
	path := configFilePath(root)
	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s %s already exists\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
