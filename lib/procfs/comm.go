// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where procfs is mounted.
const DefaultRoot = "/proc"

// Names reads comm files under a procfs root. The zero value reads
// from DefaultRoot; tests point Root at a fabricated tree.
type Names struct {
	Root string
}

// Process returns the comm name of process pid.
func (n Names) Process(pid int) (string, error) {
	return readComm(filepath.Join(n.root(), strconv.Itoa(pid), "comm"))
}

// Thread returns the comm name of thread tid in process pid.
func (n Names) Thread(pid, tid int) (string, error) {
	return readComm(filepath.Join(n.root(), strconv.Itoa(pid), "task", strconv.Itoa(tid), "comm"))
}

// Self returns the comm name of the calling thread.
func (n Names) Self() (string, error) {
	return readComm(filepath.Join(n.root(), "thread-self", "comm"))
}

func (n Names) root() string {
	if n.Root == "" {
		return DefaultRoot
	}
	return n.Root
}

func readComm(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
