// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package snapshot

import (
	"math"
	"sort"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/ancillary"
)

// Document is one capture.
type Document struct {
	// Layout is the shared memory layout version the capture was
	// read with.
	Layout uint32 `json:"layout"`

	// EpochNanoseconds is the raw timestamp every sample time is
	// relative to.
	EpochNanoseconds uint64 `json:"epoch_ns"`

	Threads []Thread        `json:"threads"`
	Skipped []SkippedThread `json:"skipped,omitempty"`
}

// Thread is one captured producer thread.
type Thread struct {
	Type       string `json:"type"`
	PID        int    `json:"pid"`
	TID        int    `json:"tid"`
	Name       string `json:"name"`
	ThreadName string `json:"thread_name"`

	// Unnamed is set when the names could not be read, typically
	// because the process had exited.
	Unnamed bool `json:"unnamed,omitempty"`

	// Exited is set when the thread was gone at capture time. Its
	// samples are the last it wrote.
	Exited bool `json:"exited"`

	Ancillary []TaskDescriptor `json:"ancillary"`
	Samples   []Sample         `json:"samples"`
}

// TaskDescriptor is one entry of a thread's ancillary data.
type TaskDescriptor struct {
	Type  string `json:"type"`
	Index uint16 `json:"index"`
	Name  string `json:"name"`
}

// Sample is one ring sample with its time in seconds since the epoch.
type Sample struct {
	Type       string  `json:"type"`
	Task       uint16  `json:"task"`
	StackDepth uint16  `json:"stack_depth"`
	CPU        uint8   `json:"cpu"`
	Timestamp  float64 `json:"timestamp"`
}

// SkippedThread is a thread left out of the capture.
type SkippedThread struct {
	PID    int    `json:"pid"`
	TID    int    `json:"tid"`
	Reason string `json:"reason"`
}

// Object type tags.
const (
	TypeThread   = "thread"
	TypeTaskDesc = "task-desc"
)

// Source is the raw material for one thread.
type Source struct {
	PID, TID int
	Exited   bool
	Samples  []abi.Sample
	Tasks    []ancillary.TaskEntry
}

// Namer looks up display names. procfs.Names satisfies it.
type Namer interface {
	Process(pid int) (string, error)
	Thread(pid, tid int) (string, error)
}

// Build assembles a document from sources. sources is reordered in
// place.
func Build(sources []Source, names Namer) *Document {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].PID != sources[j].PID {
			return sources[i].PID < sources[j].PID
		}
		return sources[i].TID > sources[j].TID
	})

	epoch := captureEpoch(sources)
	document := &Document{
		Layout:           abi.Version,
		EpochNanoseconds: epoch,
		Threads:          make([]Thread, 0, len(sources)),
	}
	for _, source := range sources {
		document.Threads = append(document.Threads, buildThread(source, names, epoch))
	}
	return document
}

// captureEpoch is the smallest first-sample timestamp over all
// sources, or 0 when there are no samples.
func captureEpoch(sources []Source) uint64 {
	epoch := uint64(math.MaxUint64)
	for _, source := range sources {
		if len(source.Samples) > 0 && source.Samples[0].Timestamp < epoch {
			epoch = source.Samples[0].Timestamp
		}
	}
	if epoch == math.MaxUint64 {
		return 0
	}
	return epoch
}

func buildThread(source Source, names Namer, epoch uint64) Thread {
	thread := Thread{
		Type:      TypeThread,
		PID:       source.PID,
		TID:       source.TID,
		Exited:    source.Exited,
		Ancillary: make([]TaskDescriptor, 0, len(source.Tasks)),
		Samples:   make([]Sample, 0, len(source.Samples)),
	}

	processName, processErr := names.Process(source.PID)
	threadName, threadErr := names.Thread(source.PID, source.TID)
	if processErr != nil || threadErr != nil {
		thread.Unnamed = true
	} else {
		thread.Name = processName
		thread.ThreadName = threadName
	}

	// Samples carry the producer's local index; the document uses
	// display indices. They coincide for a well-formed chain. A local
	// index with no descriptor in the chain (its block was never
	// announced) maps to the reserved index 0.
	display := make(map[uint16]uint16, len(source.Tasks))
	for _, task := range source.Tasks {
		thread.Ancillary = append(thread.Ancillary, TaskDescriptor{
			Type:  TypeTaskDesc,
			Index: task.Index,
			Name:  task.Name,
		})
		display[task.LocalIndex] = task.Index
	}

	for _, sample := range source.Samples {
		if sample.Timestamp < epoch {
			continue
		}
		task := display[sample.TaskIndex]
		thread.Samples = append(thread.Samples, Sample{
			Type:       sample.Type.String(),
			Task:       task,
			StackDepth: sample.StackDepth,
			CPU:        sample.CPU,
			Timestamp:  float64(sample.Timestamp-epoch) / 1e9,
		})
	}
	return thread
}
