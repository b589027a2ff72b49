// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cargo-pod/internal/packager"
	"cargo-pod/internal/pipeline"
)

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check a bundle against its checksums.txt",
		Long: `Recompute the sha256 of every file listed in the output directory's
` + packager.ChecksumsFile + ` and report files that are missing or changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := pipeline.DefaultOutputDir
			if len(args) > 0 {
				dir = args[0]
			}
			return runVerify(app, dir)
		},
	}
}

func runVerify(app *App, dir string) error {
	entries, err := packager.VerifyDir(dir)
	if err != nil {
		fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("✗"), err)
		return &ExitError{Code: pipeline.ExitPackaging, Err: err}
	}
	for _, e := range entries {
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), e.Filename)
	}
	fmt.Fprintf(app.stdout, "%s\n", SuccessStyle.Render(fmt.Sprintf("%d file(s) verified", len(entries))))
	return nil
}
