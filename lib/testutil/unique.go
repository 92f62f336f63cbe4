// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
)

var socketCounter atomic.Uint64

// SocketName returns an abstract socket name unique to this test
// process and call, such as "ut-test-8812-3".
func SocketName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, os.Getpid(), socketCounter.Add(1))
}
