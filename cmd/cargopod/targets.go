// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cargo-pod/pkg/target"
)

func newTargetsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List target profiles and supported triples",
		Long: `List the target profiles accepted by --target and every supported Rust
triple, marking the triples whose standard library rustup reports as
installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var installed map[string]bool
			if app.Installed != nil {
				installed = app.Installed(cmd.Context())
			}
			listTargets(app.stdout, installed)
			return nil
		},
	}
}

// listTargets prints profiles and triples. A nil installed set means rustup
// could not be queried.
func listTargets(w io.Writer, installed map[string]bool) {
	fmt.Fprintln(w, TitleStyle.Render("Profiles"))
	for _, p := range target.Profiles() {
		triples := make([]string, 0, len(p.Descriptors))
		for _, d := range p.Descriptors {
			triples = append(triples, d.Triple())
		}
		fmt.Fprintf(w, "  %-10s %s\n", CmdStyle.Render(string(p.Name)), SubtitleStyle.Render(p.Summary))
		fmt.Fprintf(w, "  %-10s %s\n", "", VerboseStyle.Render(strings.Join(triples, ", ")))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Targets"))
	for _, d := range target.Supported() {
		var mark string
		switch {
		case installed == nil:
			mark = SubtitleStyle.Render("?")
		case installed[d.Triple()]:
			mark = SuccessStyle.Render("✓")
		default:
			mark = WarningStyle.Render("✗")
		}
		fmt.Fprintf(w, "  %s %-28s %s\n", mark, CmdStyle.Render(d.Triple()), SubtitleStyle.Render(d.Platform().DisplayName()))
	}
	if installed == nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SubtitleStyle.Render("rustup not available; installed state unknown"))
	}
}
