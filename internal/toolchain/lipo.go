// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Lipo merges libraries with `lipo -create`.
type Lipo struct {
	binary      string
	execCommand ExecCommandFunc
}

// NewLipo creates a lipo merger. A nil execCommand uses exec.CommandContext.
func NewLipo(binary string, execCommand ExecCommandFunc) *Lipo {
	if binary == "" {
		binary = "lipo"
	}
	if execCommand == nil {
		execCommand = exec.CommandContext
	}
	return &Lipo{binary: binary, execCommand: execCommand}
}

// MergeArgs returns the lipo arguments for a merge.
//
// Generated command: lipo -create -output <output> <input...>
func (l *Lipo) MergeArgs(inputs []MergeInput, output string) []string {
	args := []string{"-create", "-output", output}
	for _, in := range inputs {
		args = append(args, in.Path)
	}
	return args
}

// Merge implements Merger.
func (l *Lipo) Merge(ctx context.Context, inputs []MergeInput, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: lipo needs at least one input", ErrToolchain)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create merge output directory: %w", err)
	}

	args := l.MergeArgs(inputs, output)
	cmd := l.execCommand(ctx, l.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		cmdErr := newCommandError(QuoteCommand(l.binary, args), err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			cmdErr.Err = fmt.Errorf("%w: %s", err, msg)
		}
		return cmdErr
	}
	return nil
}
