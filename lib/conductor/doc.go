// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package conductor implements the control channel between an
// instrumented thread and the conductor: a stream socket in the
// abstract namespace (by default "@ut-conductor") over which shared
// memory descriptors travel as SCM_RIGHTS control messages.
//
// The protocol has one message shape. Every message is a single zero
// payload byte carrying exactly one descriptor. The first message on a
// connection is the thread's ring region; every later message is the
// next ancillary block in that thread's chain. There is no other
// framing and nothing flows back from the conductor.
//
// Producers use [Dial] and [Conn.SendFD]. Sends never block: a full
// socket buffer is reported as an error and the descriptor is dropped,
// since the instrumented thread must not wait on the conductor. The
// conductor uses [Listen], [Listener.Accept], and [Conn.ReceiveFD];
// [Conn.PeerCredentials] attributes a connection to a process without
// trusting anything the producer wrote.
package conductor
