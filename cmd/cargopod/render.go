// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"cargo-pod/internal/assemble"
	"cargo-pod/internal/build"
	"cargo-pod/internal/headers"
	"cargo-pod/internal/issue"
	"cargo-pod/internal/manifest"
	"cargo-pod/internal/packager"
	"cargo-pod/internal/pipeline"
	"cargo-pod/internal/project"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

// glamourStyle is the glamour style used for issue guidance on terminals.
const glamourStyle = "dark"

// renderFailure writes a failure report to the app's stderr: the error,
// the compiler output of failed builds verbatim, and the matching guidance.
// Guidance is rendered with glamour on terminals and left as Markdown
// otherwise.
func renderFailure(app *App, err error, verbose bool) {
	writeFailure(app.stderr, err, verbose, app.isTerminal())
}

func writeFailure(w io.Writer, err error, verbose, tty bool) {
	title := "Failed"
	if phase := pipeline.PhaseOf(err); phase != "" {
		title = fmt.Sprintf("Failed during %s", phase)
	}
	fmt.Fprintln(w, renderHeaderStyle.Render("✗ "+title))
	fmt.Fprintln(w, formatErrorForDisplay(err, verbose))

	var bfe *build.BuildFailedError
	if errors.As(err, &bfe) {
		for _, r := range bfe.Failed {
			fmt.Fprintln(w)
			fmt.Fprintln(w, renderLabelStyle.Render(r.Descriptor.Triple()))
			if r.Diagnostics != "" {
				fmt.Fprint(w, r.Diagnostics)
				if !strings.HasSuffix(r.Diagnostics, "\n") {
					fmt.Fprintln(w)
				}
			} else if r.Err != nil {
				fmt.Fprintln(w, r.Err)
			}
		}
		if len(bfe.Cancelled) > 0 {
			triples := make([]string, 0, len(bfe.Cancelled))
			for _, r := range bfe.Cancelled {
				triples = append(triples, r.Descriptor.Triple())
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s %s\n", renderLabelStyle.Render("Cancelled:"), strings.Join(triples, ", "))
		}
	}

	guidance := issue.Get(issueFor(err))
	if guidance == nil {
		return
	}
	fmt.Fprintln(w)
	if tty {
		if rendered, renderErr := guidance.Render(glamourStyle); renderErr == nil {
			fmt.Fprint(w, rendered)
			return
		}
	}
	fmt.Fprint(w, guidance.Markdown())
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// issueFor maps an error to its guidance, or 0 when there is none.
func issueFor(err error) issue.Id {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue
	}

	var (
		notInstalled *target.ToolchainNotInstalledError
		emptySet     *target.EmptyTargetSetError
	)
	switch {
	case errors.Is(err, project.ErrNotStaticlib):
		return issue.NotStaticlibId
	case errors.Is(err, project.ErrProject):
		return issue.ProjectNotFoundId
	case errors.As(err, &notInstalled):
		return issue.ToolchainMissingId
	case errors.As(err, &emptySet) && emptySet.Host != "":
		return issue.HostNotSupportedId
	case errors.Is(err, target.ErrResolution):
		return issue.TargetResolutionFailedId
	case errors.Is(err, build.ErrBuild), errors.Is(err, toolchain.ErrForbiddenArg):
		return issue.BuildFailedId
	case errors.Is(err, headers.ErrInterface):
		return issue.InterfaceMissingId
	case errors.Is(err, assemble.ErrAssembly):
		return issue.AssemblyFailedId
	case errors.Is(err, manifest.ErrManifest):
		return issue.TemplateInvalidId
	case errors.Is(err, packager.ErrForeignDestination):
		return issue.DestinationInUseId
	case errors.Is(err, packager.ErrPackaging):
		return issue.PackagingFailedId
	}
	return 0
}
