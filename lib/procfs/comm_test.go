// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNamesFromFabricatedTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "42", "comm"), "glxgears\n")
	writeFile(t, filepath.Join(root, "42", "task", "43", "comm"), "render worker\n")

	names := Names{Root: root}
	process, err := names.Process(42)
	if err != nil || process != "glxgears" {
		t.Errorf("Process: got %q, %v", process, err)
	}
	thread, err := names.Thread(42, 43)
	if err != nil || thread != "render worker" {
		t.Errorf("Thread: got %q, %v", thread, err)
	}
}

func TestNamesOfExitedProcessFail(t *testing.T) {
	t.Parallel()

	names := Names{Root: t.TempDir()}
	if _, err := names.Process(7); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got %v, want fs.ErrNotExist", err)
	}
	if _, err := names.Thread(7, 8); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got %v, want fs.ErrNotExist", err)
	}
}

func TestNamesOfRunningProcess(t *testing.T) {
	t.Parallel()

	var names Names
	process, err := names.Process(os.Getpid())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if process == "" {
		t.Error("empty process name")
	}
	if _, err := names.Self(); err != nil {
		t.Errorf("Self: %v", err)
	}
}
