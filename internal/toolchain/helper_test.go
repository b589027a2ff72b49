// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
)

type (
	// commandRecorder captures arguments passed to the exec function and
	// runs TestHelperProcess instead of the real tool.
	commandRecorder struct {
		mu          sync.Mutex
		invocations [][]string
		exitCode    int
		stdout      string
		stderr      string
	}
)

func (m *commandRecorder) execCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	m.mu.Lock()
	m.invocations = append(m.invocations, append([]string{name}, args...))
	m.mu.Unlock()

	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	//nolint:gosec // TestHelperProcess is a test-only pattern
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{
		"GO_WANT_HELPER_PROCESS=1",
		fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", m.exitCode),
		"GO_HELPER_STDOUT=" + m.stdout,
		"GO_HELPER_STDERR=" + m.stderr,
	}
	return cmd
}

func (m *commandRecorder) last(t *testing.T) []string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invocations) == 0 {
		t.Fatal("no commands were invoked")
	}
	return m.invocations[len(m.invocations)-1]
}

// TestHelperProcess is not a real test. It is invoked as a subprocess by
// commandRecorder to simulate cargo, rustup and lipo.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("GO_HELPER_STDERR"))
	code := 0
	fmt.Sscanf(os.Getenv("GO_HELPER_EXIT_CODE"), "%d", &code)
	os.Exit(code)
}
