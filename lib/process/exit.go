// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fatal writes "<program>: error: err" to stderr and exits with code 1.
// Use it in main() for errors from run().
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s: error: %v\n", filepath.Base(os.Args[0]), err)
	os.Exit(1)
}
