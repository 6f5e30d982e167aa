// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package socket implements the length-delimited stream transport over
// TCP, stdin/stdout, a named pipe, or a character device.
package socket

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/blockdevio/devio-go/internal/transport"
)

// Socket is a blocking, length-delimited stream transport. Flush is a
// no-op: a byte stream has no cursor to reset. Pool holds the protocol
// buffer's growth mechanics for this transport: the caller reads and
// writes through Pool.Buf directly, and Grow reallocates it along with
// the VHD bitmap path's auxiliary buffer.
type Socket struct {
	rw   io.ReadWriteCloser
	conn net.Conn // non-nil only for the TCP variant, for TCP_NODELAY etc.
	Pool *Pool
}

// ListenTCP binds INADDR_ANY:port, accepts exactly one connection, and then
// closes the listener -- this server handles exactly one client at a time.
// The listen backlog is the platform default from net.Listen, not 1.
func ListenTCP(port, bufferSize int) (*Socket, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("socket: listen on port %d: %w", port, err)
	}
	defer l.Close()

	conn, err := l.Accept()
	if err != nil {
		return nil, fmt.Errorf("socket: accept: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Socket{rw: conn, conn: conn, Pool: NewPool(bufferSize)}, nil
}

// Stdio uses the process's own stdin/stdout as the transport, selected by
// the comm device "-".
func Stdio(bufferSize int) *Socket {
	return &Socket{rw: stdioReadWriteCloser{}, Pool: NewPool(bufferSize)}
}

type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error                { return nil }

// OpenPath opens a named pipe or character-device path as the transport --
// any comm device string that is neither a TCP port, "-", "shm:...", nor
// "drv:..." falls through to this.
func OpenPath(path string, bufferSize int) (*Socket, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: open %q: %w", path, err)
	}
	return &Socket{rw: f, Pool: NewPool(bufferSize)}, nil
}

// Grow implements buffer.Grower by delegating to Pool.
func (s *Socket) Grow(newSize int) error {
	return s.Pool.Grow(newSize)
}

// ReadFull reads exactly len(buf) bytes, retrying on short reads, and
// reports a closed peer as transport.ErrConnectionClosed.
func (s *Socket) ReadFull(buf []byte) error {
	if _, err := io.ReadFull(s.rw, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return transport.ErrConnectionClosed
		}
		return err
	}
	return nil
}

// WriteFull writes exactly len(buf) bytes, retrying on short writes until
// the whole buffer is sent, and reports a failed or zero-byte write (the
// peer has closed) as transport.ErrConnectionClosed.
func (s *Socket) WriteFull(buf []byte) error {
	for len(buf) > 0 {
		n, err := s.rw.Write(buf)
		if err != nil {
			return transport.ErrConnectionClosed
		}
		if n == 0 {
			return transport.ErrConnectionClosed
		}
		buf = buf[n:]
	}
	return nil
}

// Flush is a no-op for a byte stream.
func (s *Socket) Flush() error {
	return nil
}

func (s *Socket) Close() error {
	return s.rw.Close()
}
