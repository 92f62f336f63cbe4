// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ut-conductor collects trace buffers from instrumented threads.
//
// It listens on an abstract Unix socket (default "ut-conductor") for
// threads of processes using lib/tracer, maps the ring each thread
// sends, and collects the ancillary blocks that follow. On SIGINT or
// SIGQUIT it stops every connected thread with ptrace, reads their
// buffers, writes a capture, and exits. SIGTERM exits without
// capturing.
//
// Threads are stopped and left stopped: the kernel detaches them when
// the conductor exits. Set conductor.resume in the config to detach
// explicitly after writing.
package main
