// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/clock"
	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/shm"
)

// DefaultHandshakeTimeout bounds the wait for a new connection's ring
// descriptor.
const DefaultHandshakeTimeout = 5 * time.Second

// DefaultSettleDelay is how long a capture keeps draining descriptors
// after pausing, so blocks announced just before the pause are read.
const DefaultSettleDelay = 20 * time.Millisecond

// CaptureFunc runs on the registry's owning goroutine when a trigger
// fires. clients holds every Active client, in connection order.
type CaptureFunc func(ctx context.Context, clients []*Client) error

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Listener is the bound rendezvous socket. The registry closes it
	// when Run returns.
	Listener *conductor.Listener

	// Clock drives the settle window and dates the handshake
	// deadline. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives connection lifecycle events.
	Logger *slog.Logger

	HandshakeTimeout time.Duration
	SettleDelay      time.Duration

	// Observe, if set, is called on the owning goroutine after every
	// change to a client.
	Observe func(ClientStatus)
}

// ClientStatus is a copy of a client's bookkeeping, safe to hand to
// other goroutines.
type ClientStatus struct {
	ID           uint64
	PID, TID     int
	State        State
	Blocks       int
	Disconnected bool
	Err          error
}

// Registry tracks connected producers.
type Registry struct {
	listener         *conductor.Listener
	clock            clock.Clock
	logger           *slog.Logger
	handshakeTimeout time.Duration
	settleDelay      time.Duration
	observe          func(ClientStatus)

	events  chan event
	clients map[uint64]*Client
	order   []uint64

	// connections tracks the accept loop and per-connection readers
	// so Run can wait for them before releasing mappings.
	connections sync.WaitGroup
}

type eventKind int

const (
	eventConnected eventKind = iota
	eventActive
	eventBlock
	eventDisconnected
	eventSevered
)

// event is how connection goroutines report to the owner. Mappings
// carried by an event belong to the owner once received.
type event struct {
	kind eventKind
	id   uint64

	conn     *conductor.Conn
	pid, tid int
	mapping  *shm.Mapping
	err      error
}

// NewRegistry returns a registry serving options.Listener.
func NewRegistry(options RegistryOptions) *Registry {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.HandshakeTimeout == 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if options.SettleDelay == 0 {
		options.SettleDelay = DefaultSettleDelay
	}
	return &Registry{
		listener:         options.Listener,
		clock:            options.Clock,
		logger:           options.Logger,
		handshakeTimeout: options.HandshakeTimeout,
		settleDelay:      options.SettleDelay,
		observe:          options.Observe,
		events:           make(chan event, 64),
		clients:          make(map[uint64]*Client),
	}
}

// Run accepts producers until ctx is cancelled or a trigger arrives.
// On a trigger it calls capture with the Active clients and returns
// capture's result: a capture ends the registry's life. Every mapping
// and connection is released before Run returns.
func (r *Registry) Run(ctx context.Context, triggers <-chan struct{}, capture CaptureFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer r.shutdown(cancel)

	r.connections.Add(1)
	go r.acceptLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case received := <-r.events:
			r.apply(received)
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
			r.drain()
			clients := r.active()
			r.logger.Info("capture triggered", "clients", len(clients))
			return capture(ctx, clients)
		}
	}
}

// Settle applies connection events for the settle delay. It must be
// called from the owning goroutine, normally by the capture callback
// once producers are paused.
func (r *Registry) Settle(ctx context.Context) {
	deadline := r.clock.After(r.settleDelay)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			r.drain()
			return
		case received := <-r.events:
			r.apply(received)
		}
	}
}

// drain applies every event already queued without waiting.
func (r *Registry) drain() {
	for {
		select {
		case received := <-r.events:
			r.apply(received)
		default:
			return
		}
	}
}

func (r *Registry) active() []*Client {
	var clients []*Client
	for _, id := range r.order {
		client := r.clients[id]
		if client.State == StateActive {
			clients = append(clients, client)
		}
	}
	return clients
}

func (r *Registry) apply(received event) {
	if received.kind == eventConnected {
		client := &Client{ID: received.id, State: StateConnecting, conn: received.conn}
		r.clients[received.id] = client
		r.order = append(r.order, received.id)
		r.notify(client)
		return
	}

	client, ok := r.clients[received.id]
	if !ok || client.State == StateSevered {
		if received.mapping != nil {
			received.mapping.Close()
		}
		return
	}

	switch received.kind {
	case eventActive:
		client.PID = received.pid
		client.TID = received.tid
		client.ring = received.mapping
		client.State = StateActive
		r.logger.Info("client active", "client", client.ID, "pid", client.PID, "tid", client.TID)

	case eventBlock:
		client.blocks = append(client.blocks, received.mapping)
		r.logger.Debug("ancillary block received",
			"client", client.ID, "tid", client.TID, "blocks", len(client.blocks))

	case eventDisconnected:
		client.Disconnected = true
		r.logger.Debug("client disconnected", "client", client.ID, "tid", client.TID)

	case eventSevered:
		r.logger.Warn("client severed",
			"client", client.ID, "tid", client.TID, "state", client.State.String(), "error", received.err)
		client.sever(received.err)
	}
	r.notify(client)
}

func (r *Registry) notify(client *Client) {
	if r.observe == nil {
		return
	}
	r.observe(ClientStatus{
		ID:           client.ID,
		PID:          client.PID,
		TID:          client.TID,
		State:        client.State,
		Blocks:       len(client.blocks),
		Disconnected: client.Disconnected,
		Err:          client.Err,
	})
}

func (r *Registry) acceptLoop(ctx context.Context) {
	defer r.connections.Done()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { r.listener.Close() })
	defer stop()

	var nextID uint64
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Error("accept failed", "error", err)
			continue
		}

		nextID++
		if !r.send(ctx, event{kind: eventConnected, id: nextID, conn: conn}) {
			conn.Close()
			return
		}
		r.connections.Add(1)
		go r.serve(ctx, nextID, conn)
	}
}

// serve runs the handshake for one connection and then forwards each
// ancillary block it announces.
func (r *Registry) serve(ctx context.Context, id uint64, conn *conductor.Conn) {
	defer r.connections.Done()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ringMapping, pid, tid, err := r.handshake(conn)
	if err != nil {
		r.send(ctx, event{kind: eventSevered, id: id, err: err})
		return
	}
	if !r.send(ctx, event{kind: eventActive, id: id, pid: pid, tid: tid, mapping: ringMapping}) {
		ringMapping.Close()
		return
	}

	for {
		fd, err := conn.ReceiveFD()
		if errors.Is(err, io.EOF) {
			r.send(ctx, event{kind: eventDisconnected, id: id})
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				r.send(ctx, event{kind: eventSevered, id: id, err: err})
			}
			return
		}

		mapping, err := shm.MapReadOnly(fd)
		if err != nil {
			unix.Close(fd)
			r.send(ctx, event{kind: eventSevered, id: id, err: fmt.Errorf("mapping ancillary block: %w", err)})
			return
		}
		if !r.send(ctx, event{kind: eventBlock, id: id, mapping: mapping}) {
			mapping.Close()
			return
		}
	}
}

// handshake receives and validates the ring descriptor. Process id
// attribution comes from the socket's peer credentials; the header's
// pid is used only when those are unavailable.
func (r *Registry) handshake(conn *conductor.Conn) (*shm.Mapping, int, int, error) {
	conn.SetReadDeadline(r.clock.Now().Add(r.handshakeTimeout))
	fd, err := conn.ReceiveFD()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("receiving ring: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	mapping, err := shm.MapReadOnly(fd)
	if err != nil {
		unix.Close(fd)
		return nil, 0, 0, fmt.Errorf("mapping ring: %w", err)
	}

	headerPID, tid, err := validateRing(mapping)
	if err != nil {
		mapping.Close()
		return nil, 0, 0, fmt.Errorf("validating ring: %w", err)
	}

	pid := headerPID
	if credentials, err := conn.PeerCredentials(); err == nil {
		pid = int(credentials.PID)
	} else {
		r.logger.Debug("peer credentials unavailable, using header pid", "tid", tid, "error", err)
	}
	return mapping, pid, tid, nil
}

// send delivers an event to the owner, giving up when ctx ends.
func (r *Registry) send(ctx context.Context, outgoing event) bool {
	select {
	case r.events <- outgoing:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Registry) shutdown(cancel context.CancelFunc) {
	cancel()
	r.listener.Close()
	for _, client := range r.clients {
		if client.conn != nil {
			client.conn.Close()
		}
	}
	r.connections.Wait()

	// Events sent before cancellation may still hold mappings.
	for {
		select {
		case pending := <-r.events:
			if pending.mapping != nil {
				pending.mapping.Close()
			}
			if pending.conn != nil {
				pending.conn.Close()
			}
		default:
			for _, client := range r.clients {
				client.release()
			}
			return
		}
	}
}
