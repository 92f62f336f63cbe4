// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package conductor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultName is the rendezvous name when none is configured.
const DefaultName = "ut-conductor"

var (
	// ErrNoDescriptor is returned by ReceiveFD for a message that
	// carried payload but no descriptor.
	ErrNoDescriptor = errors.New("conductor: message carried no descriptor")

	// ErrUnexpectedMessage is returned by ReceiveFD for a message
	// that is not exactly one descriptor: several descriptors, a
	// truncated control buffer, or a control message other than
	// SCM_RIGHTS. The connection cannot be trusted after it.
	ErrUnexpectedMessage = errors.New("conductor: unexpected control message")
)

// messagePayload is the single byte sent alongside each descriptor.
// Stream sockets do not deliver control data without at least one
// byte of payload.
var messagePayload = []byte{0}

// controlBufferSize holds one SCM_RIGHTS message with room for a few
// extra descriptors, so a misbehaving peer is detected instead of
// silently truncated.
var controlBufferSize = unix.CmsgSpace(4 * 4)

// address returns the abstract socket address for name. The leading
// "@" tells the net package to use the abstract namespace.
func address(name string) *net.UnixAddr {
	return &net.UnixAddr{Name: "@" + name, Net: "unix"}
}

// Listener accepts producer connections.
type Listener struct {
	listener *net.UnixListener
	name     string
}

// Listen binds the abstract socket name. Only one conductor per
// network namespace can hold a given name.
func Listen(name string) (*Listener, error) {
	listener, err := net.ListenUnix("unix", address(name))
	if err != nil {
		return nil, fmt.Errorf("conductor: listening on @%s: %w", name, err)
	}
	return &Listener{listener: listener, name: name}, nil
}

// Name returns the abstract name the listener is bound to, without
// the leading "@".
func (l *Listener) Name() string { return l.name }

// Accept waits for the next producer connection. After Close it
// returns an error wrapping net.ErrClosed.
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.listener.AcceptUnix()
	if err != nil {
		return nil, fmt.Errorf("conductor: accepting: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Close stops accepting connections. Established connections are not
// affected.
func (l *Listener) Close() error { return l.listener.Close() }

// Conn is one control connection.
type Conn struct {
	conn *net.UnixConn
}

// Dial connects to the conductor listening on name. ctx bounds the
// connection attempt only.
func Dial(ctx context.Context, name string) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", address(name).Name)
	if err != nil {
		return nil, fmt.Errorf("conductor: connecting to @%s: %w", name, err)
	}
	return &Conn{conn: conn.(*net.UnixConn)}, nil
}

// SendFD passes fd to the peer without blocking. The caller keeps its
// own copy of fd. If the socket buffer is full the send fails with
// unix.EAGAIN and nothing is delivered.
func (c *Conn) SendFD(fd int) error {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("conductor: sending fd %d: %w", fd, err)
	}

	rights := unix.UnixRights(fd)
	var sendErr error
	controlErr := raw.Write(func(socket uintptr) bool {
		for {
			sendErr = unix.Sendmsg(int(socket), messagePayload, rights, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
			if sendErr != unix.EINTR {
				return true
			}
		}
	})
	if controlErr != nil {
		return fmt.Errorf("conductor: sending fd %d: %w", fd, controlErr)
	}
	if sendErr != nil {
		return fmt.Errorf("conductor: sending fd %d: %w", fd, sendErr)
	}
	return nil
}

// ReceiveFD blocks until the next message and returns the descriptor
// it carried, close-on-exec. It returns io.EOF once the peer has
// closed the connection. A read deadline set with SetReadDeadline
// bounds the wait.
func (c *Conn) ReceiveFD() (int, error) {
	payload := make([]byte, len(messagePayload))
	control := make([]byte, controlBufferSize)

	n, controlLength, flags, _, err := c.conn.ReadMsgUnix(payload, control)
	if err != nil {
		return -1, fmt.Errorf("conductor: receiving: %w", err)
	}
	if n == 0 && controlLength == 0 {
		return -1, io.EOF
	}

	descriptors, parseErr := parseRights(control[:controlLength])
	if flags&unix.MSG_CTRUNC != 0 {
		closeAll(descriptors)
		return -1, fmt.Errorf("%w: control data truncated", ErrUnexpectedMessage)
	}
	if parseErr != nil {
		closeAll(descriptors)
		return -1, parseErr
	}

	switch len(descriptors) {
	case 0:
		return -1, ErrNoDescriptor
	case 1:
		return descriptors[0], nil
	default:
		closeAll(descriptors)
		return -1, fmt.Errorf("%w: %d descriptors in one message", ErrUnexpectedMessage, len(descriptors))
	}
}

// parseRights extracts every descriptor from control. Descriptors are
// returned even alongside an error so the caller can close them.
func parseRights(control []byte) ([]int, error) {
	if len(control) == 0 {
		return nil, nil
	}
	messages, err := unix.ParseSocketControlMessage(control)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
	}

	var descriptors []int
	var unexpected error
	for _, message := range messages {
		if message.Header.Level != unix.SOL_SOCKET || message.Header.Type != unix.SCM_RIGHTS {
			unexpected = fmt.Errorf("%w: level %d type %d", ErrUnexpectedMessage,
				message.Header.Level, message.Header.Type)
			continue
		}
		rights, err := unix.ParseUnixRights(&message)
		if err != nil {
			unexpected = fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
			continue
		}
		descriptors = append(descriptors, rights...)
	}
	return descriptors, unexpected
}

func closeAll(descriptors []int) {
	for _, fd := range descriptors {
		unix.Close(fd)
	}
}

// Credentials identify the process on the other end of a connection,
// as recorded by the kernel when it connected.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// PeerCredentials returns the kernel's SO_PEERCRED record for the
// connection.
func (c *Conn) PeerCredentials() (Credentials, error) {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("conductor: reading peer credentials: %w", err)
	}

	var ucred *unix.Ucred
	var credErr error
	if err := raw.Control(func(socket uintptr) {
		ucred, credErr = unix.GetsockoptUcred(int(socket), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Credentials{}, fmt.Errorf("conductor: reading peer credentials: %w", err)
	}
	if credErr != nil {
		return Credentials{}, fmt.Errorf("conductor: reading peer credentials: %w", credErr)
	}
	return Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}, nil
}

// SetReadDeadline bounds the next ReceiveFD. A zero time clears it.
func (c *Conn) SetReadDeadline(deadline time.Time) error {
	return c.conn.SetReadDeadline(deadline)
}

// Close closes the connection. A ReceiveFD blocked in another
// goroutine returns an error wrapping net.ErrClosed.
func (c *Conn) Close() error { return c.conn.Close() }
