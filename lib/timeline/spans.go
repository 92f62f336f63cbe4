// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package timeline

import (
	"fmt"

	"github.com/bureau-foundation/ut/lib/snapshot"
)

// Span is one execution of a task on a thread. Times are seconds
// since the capture epoch.
type Span struct {
	Task  uint16
	Name  string
	Start float64
	End   float64

	// Depth is the task's nesting level; zero is outermost.
	Depth int

	CPUStart uint8
	CPUEnd   uint8

	// Implicit is set when the opening push was lost and Start was
	// assumed to be zero.
	Implicit bool
}

// Duration returns End-Start in seconds.
func (s Span) Duration() float64 { return s.End - s.Start }

// ThreadTimeline is the span view of one captured thread.
type ThreadTimeline struct {
	PID    int
	TID    int
	Label  string
	Exited bool

	// Spans are in the order they closed.
	Spans []Span

	// Unbalanced counts samples that could not be paired.
	Unbalanced int

	// Open counts tasks still running when the thread was stopped.
	Open int

	// Start and End bound the closed spans. Both are zero when there
	// are none.
	Start float64
	End   float64
}

// UnknownTask names spans whose task has no descriptor.
const UnknownTask = "<unknown>"

// Label returns "process/thread" for a thread, or "pid/tid" when it
// was not named.
func Label(thread snapshot.Thread) string {
	if thread.Unnamed || (thread.Name == "" && thread.ThreadName == "") {
		return fmt.Sprintf("%d/%d", thread.PID, thread.TID)
	}
	return thread.Name + "/" + thread.ThreadName
}

// Spans pairs a thread's samples into spans.
func Spans(thread snapshot.Thread) ThreadTimeline {
	names := make(map[uint16]string, len(thread.Ancillary))
	for _, descriptor := range thread.Ancillary {
		names[descriptor.Index] = descriptor.Name
	}

	timeline := ThreadTimeline{
		PID:    thread.PID,
		TID:    thread.TID,
		Label:  Label(thread),
		Exited: thread.Exited,
	}

	// stack[depth] is the open push at that depth, nil when a pop is
	// yet to reveal it.
	var stack []*snapshot.Sample
	for index := range thread.Samples {
		sample := &thread.Samples[index]
		depth := int(sample.StackDepth)

		switch sample.Type {
		case "push":
			if len(stack) > depth {
				timeline.Unbalanced++
				continue
			}
			for len(stack) < depth {
				stack = append(stack, nil)
			}
			stack = append(stack, sample)

		case "pop":
			for len(stack) <= depth {
				stack = append(stack, nil)
			}
			// Anything above depth is a push whose pop was lost.
			stack = stack[:depth+1]

			opening := stack[depth]
			implicit := false
			if opening == nil {
				opening = &snapshot.Sample{Task: sample.Task, CPU: sample.CPU}
				implicit = true
			}
			if opening.Task != sample.Task {
				timeline.Unbalanced++
				continue
			}
			stack = stack[:depth]

			name, ok := names[sample.Task]
			if !ok {
				name = UnknownTask
			}
			timeline.Spans = append(timeline.Spans, Span{
				Task:     sample.Task,
				Name:     name,
				Start:    opening.Timestamp,
				End:      sample.Timestamp,
				Depth:    depth,
				CPUStart: opening.CPU,
				CPUEnd:   sample.CPU,
				Implicit: implicit,
			})

		default:
			timeline.Unbalanced++
		}
	}

	for _, open := range stack {
		if open != nil {
			timeline.Open++
		}
	}

	for index, span := range timeline.Spans {
		if index == 0 || span.Start < timeline.Start {
			timeline.Start = span.Start
		}
		if index == 0 || span.End > timeline.End {
			timeline.End = span.End
		}
	}
	return timeline
}

// Threads builds timelines for every thread of a document that has at
// least one span.
func Threads(document *snapshot.Document) []ThreadTimeline {
	var timelines []ThreadTimeline
	for _, thread := range document.Threads {
		timeline := Spans(thread)
		if len(timeline.Spans) == 0 {
			continue
		}
		timelines = append(timelines, timeline)
	}
	return timelines
}

// Extent returns the latest span end over timelines.
func Extent(timelines []ThreadTimeline) float64 {
	var end float64
	for _, timeline := range timelines {
		if timeline.End > end {
			end = timeline.End
		}
	}
	return end
}
