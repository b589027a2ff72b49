// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Rustup queries the Rust toolchain manager.
type Rustup struct {
	binary      string
	execCommand ExecCommandFunc
}

// NewRustup creates a rustup client. A nil execCommand uses exec.CommandContext.
func NewRustup(binary string, execCommand ExecCommandFunc) *Rustup {
	if binary == "" {
		binary = "rustup"
	}
	if execCommand == nil {
		execCommand = exec.CommandContext
	}
	return &Rustup{binary: binary, execCommand: execCommand}
}

// InstalledTargets returns the set of installed target triples. When rustup
// is missing or fails the result is nil, meaning "unknown".
func (r *Rustup) InstalledTargets(ctx context.Context) map[string]bool {
	cmd := r.execCommand(ctx, r.binary, "target", "list", "--installed")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil
	}
	return parseTargetList(out.Bytes())
}

func parseTargetList(out []byte) map[string]bool {
	installed := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// rustup target list (without --installed) marks entries "(installed)".
		triple, _, _ := strings.Cut(line, " ")
		installed[triple] = true
	}
	return installed
}
