// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package snapshot

import (
	"fmt"

	"github.com/bureau-foundation/ut/lib/collector"
)

// FromCapture reads the buffers of every client in result. A client
// whose ring cannot be reconstructed joins the skipped list.
func FromCapture(result collector.Result) ([]Source, []SkippedThread) {
	sources := make([]Source, 0, len(result.Clients))
	var skipped []SkippedThread

	for _, client := range result.Clients {
		samples, err := client.Samples()
		if err != nil {
			skipped = append(skipped, SkippedThread{
				PID:    client.PID,
				TID:    client.TID,
				Reason: fmt.Sprintf("reading ring: %v", err),
			})
			continue
		}
		sources = append(sources, Source{
			PID:     client.PID,
			TID:     client.TID,
			Exited:  client.State == collector.StateExited,
			Samples: samples,
			Tasks:   client.Tasks(),
		})
	}

	for _, entry := range result.Skipped {
		skipped = append(skipped, SkippedThread{
			PID:    entry.Client.PID,
			TID:    entry.Client.TID,
			Reason: entry.Err.Error(),
		})
	}
	return sources, skipped
}
