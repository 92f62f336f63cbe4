// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the helpers shared by ut's tests.
//
// [RequireReceive] and [RequireClosed] bound every wait on a channel
// so a stuck producer or registry fails the test instead of hanging
// it. They are the only real wall-clock timeouts in the suite.
//
// [SocketName] gives each test its own abstract socket name. The
// abstract namespace is shared by every process in the network
// namespace, so a fixed name would collide between packages tested in
// parallel.
package testutil
