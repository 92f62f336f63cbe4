// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/bureau-foundation/ut/lib/snapshot"
	"github.com/bureau-foundation/ut/lib/timeline"
)

// taskTotal accumulates one task's spans on one thread.
type taskTotal struct {
	name  string
	count int
	total float64
}

// writeSummary prints every thread with its tasks, busiest first.
func writeSummary(w io.Writer, document *snapshot.Document) error {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "THREAD\tPID\tTID\tTASK\tCOUNT\tTOTAL")

	for _, thread := range document.Threads {
		threadTimeline := timeline.Spans(thread)
		label := threadTimeline.Label
		if thread.Exited {
			label += " (exited)"
		}
		if len(threadTimeline.Spans) == 0 {
			fmt.Fprintf(table, "%s\t%d\t%d\t-\t0\t-\n", label, thread.PID, thread.TID)
			continue
		}
		for _, task := range totalsByTask(threadTimeline.Spans) {
			fmt.Fprintf(table, "%s\t%d\t%d\t%s\t%d\t%s\n",
				label, thread.PID, thread.TID, task.name, task.count, timeline.FormatDuration(task.total))
		}
		if threadTimeline.Unbalanced > 0 {
			fmt.Fprintf(table, "%s\t%d\t%d\t<unbalanced>\t%d\t-\n",
				label, thread.PID, thread.TID, threadTimeline.Unbalanced)
		}
	}
	for _, skipped := range document.Skipped {
		fmt.Fprintf(table, "(skipped: %s)\t%d\t%d\t-\t-\t-\n", skipped.Reason, skipped.PID, skipped.TID)
	}
	return table.Flush()
}

func totalsByTask(spans []timeline.Span) []taskTotal {
	byTask := make(map[uint16]*taskTotal)
	for _, span := range spans {
		total, ok := byTask[span.Task]
		if !ok {
			total = &taskTotal{name: span.Name}
			byTask[span.Task] = total
		}
		total.count++
		total.total += span.Duration()
	}

	totals := make([]taskTotal, 0, len(byTask))
	for _, total := range byTask {
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].total != totals[j].total {
			return totals[i].total > totals[j].total
		}
		return totals[i].name < totals[j].name
	})
	return totals
}
