// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package collector

import (
	"fmt"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/ancillary"
	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/ring"
	"github.com/bureau-foundation/ut/lib/shm"
)

// State is a client's position in its lifecycle.
type State int

const (
	// StateConnecting: accepted, ring descriptor not yet received.
	StateConnecting State = iota
	// StateActive: ring mapped and validated; eligible for capture.
	StateActive
	// StateExited: the thread was gone when the capture tried to
	// pause it. Its buffers are still read.
	StateExited
	// StateSevered: the connection broke protocol or a region could
	// not be mapped. Excluded from capture.
	StateSevered
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateExited:
		return "exited"
	case StateSevered:
		return "severed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client is one producer thread known to the registry. Fields are
// written only by the registry's owning goroutine.
type Client struct {
	ID    uint64
	PID   int
	TID   int
	State State

	// Disconnected is set once the producer closed its end. The
	// client stays Active.
	Disconnected bool

	// Err records why a client was severed.
	Err error

	conn   *conductor.Conn
	ring   *shm.Mapping
	blocks []*shm.Mapping
}

// Samples reconstructs the client's ring. Call it only while the
// thread is stopped or gone.
func (c *Client) Samples() ([]abi.Sample, error) {
	if c.ring == nil {
		return nil, fmt.Errorf("client %d has no ring", c.ID)
	}
	data := c.ring.Bytes()
	info, err := abi.NewInfoView(data[:shm.PageSize])
	if err != nil {
		return nil, err
	}
	return ring.Reconstruct(info, data[shm.PageSize:])
}

// Tasks scans the client's ancillary chain in the order its blocks
// arrived.
func (c *Client) Tasks() []ancillary.TaskEntry {
	blocks := make([][]byte, len(c.blocks))
	for index, block := range c.blocks {
		blocks[index] = block.Bytes()
	}
	return ancillary.Scan(blocks)
}

// Blocks returns how many ancillary blocks have arrived.
func (c *Client) Blocks() int { return len(c.blocks) }

// sever moves the client to StateSevered and releases everything it
// holds.
func (c *Client) sever(err error) {
	c.State = StateSevered
	c.Err = err
	c.release()
}

func (c *Client) release() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.ring != nil {
		c.ring.Close()
		c.ring = nil
	}
	for _, block := range c.blocks {
		block.Close()
	}
	c.blocks = nil
}

// validateRing checks a freshly mapped ring region and returns the
// thread id its header names.
func validateRing(mapping *shm.Mapping) (pid, tid int, err error) {
	data := mapping.Bytes()
	if len(data) <= shm.PageSize {
		return 0, 0, fmt.Errorf("ring region of %d bytes has no sample area", len(data))
	}
	info, err := abi.NewInfoView(data[:shm.PageSize])
	if err != nil {
		return 0, 0, err
	}
	if err := info.Validate(); err != nil {
		return 0, 0, err
	}
	if err := ring.ValidateCapacity(len(data) - shm.PageSize); err != nil {
		return 0, 0, err
	}
	return int(info.PID()), int(info.TID()), nil
}
