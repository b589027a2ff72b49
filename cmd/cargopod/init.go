// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cargo-pod/internal/manifest"
)

// defaultTemplateFile is the file name init writes when none is given.
const defaultTemplateFile = "podspec.tmpl"

func newInitCommand(app *App) *cobra.Command {
	var (
		force bool
		local bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter podspec template",
		Long: `Write the built-in podspec template to a file so it can be customized.

Placeholders such as {{name}} and {{checksum}} are replaced when building.
Point cargo-pod at the file with --template or with
[package.metadata.pod] template = "` + defaultTemplateFile + `" in Cargo.toml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := defaultTemplateFile
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(app, path, force, local)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&local, "local", false, "write the template for unarchived bundles (no checksum)")
	return cmd
}

func runInit(app *App, path string, force, local bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", path)
	}
	if err := os.WriteFile(path, []byte(manifest.DefaultTemplateText(!local)), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(path)
	fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Fprintln(app.stdout)
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("Next steps:"))
	fmt.Fprintln(app.stdout, "  1. Edit the template")
	fmt.Fprintf(app.stdout, "  2. Add template = %q under [package.metadata.pod] in Cargo.toml\n", filepath.Base(path))
	fmt.Fprintln(app.stdout, "  3. Run 'cargo pod build'")
	return nil
}
