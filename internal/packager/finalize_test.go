// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stage(t *testing.T, dest string, files map[string]string) string {
	t.Helper()
	dir, err := StagingDir(dest)
	if err != nil {
		t.Fatalf("StagingDir: %v", err)
	}
	writeTree(t, dir, files)
	return dir
}

func TestFinalize_Idempotent(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out")
	p := &Packager{}

	if err := p.Finalize(stage(t, dest, map[string]string{"Widget.podspec": "v1", "stale.txt": "x"}), dest); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := p.Finalize(stage(t, dest, map[string]string{"Widget.podspec": "v2"}), dest); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "Widget.podspec"))
	if err != nil || string(data) != "v2" {
		t.Fatalf("podspec = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Error("previous content must be replaced, not merged")
	}
	if _, err := os.Stat(filepath.Join(dest, MarkerFile)); err != nil {
		t.Errorf("marker missing: %v", err)
	}

	siblings, _ := os.ReadDir(filepath.Dir(dest))
	for _, s := range siblings {
		if strings.HasPrefix(s.Name(), ".out.") {
			t.Errorf("leftover sibling %s", s.Name())
		}
	}
}

func TestFinalize_RefusesForeignDestination(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out")
	writeTree(t, dest, map[string]string{"important.txt": "keep me"})

	err := (&Packager{}).Finalize(stage(t, dest, map[string]string{"a": "b"}), dest)
	if !errors.Is(err, ErrForeignDestination) || !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrForeignDestination, got %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "important.txt")); string(data) != "keep me" {
		t.Error("foreign destination was modified")
	}

	file := filepath.Join(t.TempDir(), "file")
	writeTree(t, filepath.Dir(file), map[string]string{"file": ""})
	if err := (&Packager{}).Finalize(stage(t, file, nil), file); !errors.Is(err, ErrForeignDestination) {
		t.Errorf("expected ErrForeignDestination for a file, got %v", err)
	}
}

func TestFinalize_EmptyDestination(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := (&Packager{}).Finalize(stage(t, dest, map[string]string{"a": "b"}), dest); err != nil {
		t.Fatalf("Finalize into empty dir: %v", err)
	}
}
