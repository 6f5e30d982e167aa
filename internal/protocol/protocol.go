// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protocol implements the request dispatch loop: info / read /
// write, with per-transport flush semantics. State that the original
// keeps as process-wide globals (backing-store mode, cursors, the buffer
// pointer) is grouped here into a Session owned by the caller.
package protocol

import (
	"errors"
	"log"
	"syscall"

	"github.com/blockdevio/devio-go/internal/buffer"
	"github.com/blockdevio/devio-go/internal/codec"
	"github.com/blockdevio/devio-go/internal/errno"
	"github.com/blockdevio/devio-go/internal/logical"
	"github.com/blockdevio/devio-go/internal/transport"
)

// Request codes, as they appear on the wire.
const (
	OpInfo  uint64 = 0
	OpRead  uint64 = 1
	OpWrite uint64 = 2
)

// DeviceFlags bits.
const (
	FlagReadOnly uint64 = 1 << 0
)

// Info is the fixed device-info structure sent in response to OpInfo.
type Info struct {
	FileSize     uint64
	ReqAlignment uint64
	Flags        uint64
}

// Session holds everything the protocol loop needs for one client
// connection: the transport, the logical device, the device info, and the
// single shared buffer.
type Session struct {
	t      transport.Transport
	dev    *logical.Device
	info   Info
	buf    *buffer.Buffer
	rawBuf []byte // the slice backing the current buffer contents

	// canGrow reports whether buf's Grower can actually grow the buffer.
	// The shared-memory transport's region size is fixed at whatever the
	// OS granted the mapping, so bootstrap wires this to false for it even
	// though buf still needs a Grower value to satisfy buffer.New's
	// constructor.
	canGrow bool
}

// NewSession builds a Session. canGrow must be false for a buffer backed by
// a fixed-size transport (shared memory); true for one that can actually
// reallocate (socket, driver).
func NewSession(t transport.Transport, dev *logical.Device, info Info, buf *buffer.Buffer, rawBuf []byte, canGrow bool) *Session {
	return &Session{t: t, dev: dev, info: info, buf: buf, rawBuf: rawBuf, canGrow: canGrow}
}

// SetBacking updates the raw slice the session reads/writes through, for
// use after a buffer.Grower has reallocated it.
func (s *Session) SetBacking(buf []byte) {
	s.rawBuf = buf
}

// Run repeatedly reads a request code, dispatches it, and writes a
// response, until the transport reports the connection closed.
func (s *Session) Run() error {
	for {
		if err := s.serveOne(); err != nil {
			if err == transport.ErrConnectionClosed {
				log.Printf("Connection closed.")
				return nil
			}
			return err
		}
	}
}

func (s *Session) serveOne() error {
	var codeBuf [8]byte
	if err := s.t.ReadFull(codeBuf[:]); err != nil {
		return err
	}
	code := codec.HostUint64(codeBuf[:])

	switch code {
	case OpInfo:
		return s.serveInfo()
	case OpRead:
		return s.serveRead()
	case OpWrite:
		return s.serveWrite()
	default:
		log.Printf("Unknown request code %d", code)
		return s.writeU64(errno.ENODEV)
	}
}

func (s *Session) writeU64(v uint64) error {
	var b [8]byte
	codec.PutHostUint64(b[:], v)
	return s.t.WriteFull(b[:])
}

func (s *Session) serveInfo() error {
	var resp [24]byte
	codec.PutHostUint64(resp[0:8], s.info.FileSize)
	codec.PutHostUint64(resp[8:16], s.info.ReqAlignment)
	codec.PutHostUint64(resp[16:24], s.info.Flags)
	return s.t.WriteFull(resp[:])
}

func (s *Session) readOffsetLength() (offset, length uint64, err error) {
	var hdr [16]byte
	if err := s.t.ReadFull(hdr[:]); err != nil {
		return 0, 0, err
	}
	return codec.HostUint64(hdr[0:8]), codec.HostUint64(hdr[8:16]), nil
}

func (s *Session) serveRead() error {
	offset, length, err := s.readOffsetLength()
	if err != nil {
		return err
	}

	if int(length) > s.buf.Size() {
		if err := s.grow(int(length)); err != nil && err != errNoGrower {
			return s.writeReadResponse(errno.E2BIG, 0, nil)
		}
	}

	served := length
	if int(served) > s.buf.Size() {
		served = uint64(s.buf.Size())
	}

	dst := s.rawBuf[:served]
	n, rerr := s.dev.ReadAt(dst, int64(offset))
	if errorno := storeErrno(n, rerr); errorno != errno.Success {
		return s.writeReadResponse(errorno, 0, nil)
	}
	return s.writeReadResponse(errno.Success, uint64(n), dst[:n])
}

func (s *Session) writeReadResponse(errorno, length uint64, payload []byte) error {
	var hdr [16]byte
	codec.PutHostUint64(hdr[0:8], errorno)
	codec.PutHostUint64(hdr[8:16], length)
	if err := s.t.WriteFull(hdr[:]); err != nil {
		return err
	}
	if errorno == errno.Success && length > 0 {
		if err := s.t.WriteFull(payload); err != nil {
			return err
		}
	}
	return s.t.Flush()
}

func (s *Session) serveWrite() error {
	offset, length, err := s.readOffsetLength()
	if err != nil {
		return err
	}

	if s.info.Flags&FlagReadOnly != 0 {
		// Drain the payload so the stream stays framed, without
		// touching the backing store.
		if err := s.drain(int(length)); err != nil {
			return err
		}
		return s.writeWriteResponse(errno.EBADF, 0)
	}

	if int(length) > s.buf.Size() {
		log.Printf("write request length %d exceeds buffer size %d", length, s.buf.Size())
		return transport.ErrConnectionClosed
	}

	data := s.rawBuf[:length]
	if err := s.t.ReadFull(data); err != nil {
		return err
	}

	n, werr := s.dev.WriteAt(data, int64(offset))
	if errorno := storeErrno(n, werr); errorno != errno.Success {
		return s.writeWriteResponse(errorno, 0)
	}
	return s.writeWriteResponse(errno.Success, uint64(n))
}

// drain reads and discards n bytes, used to keep the stream framed when a
// write is rejected for read-only enforcement.
func (s *Session) drain(n int) error {
	remaining := n
	scratch := make([]byte, 4096)
	for remaining > 0 {
		chunk := remaining
		if chunk > len(scratch) {
			chunk = len(scratch)
		}
		if err := s.t.ReadFull(scratch[:chunk]); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

func (s *Session) writeWriteResponse(errorno, length uint64) error {
	var hdr [16]byte
	codec.PutHostUint64(hdr[0:8], errorno)
	codec.PutHostUint64(hdr[8:16], length)
	if err := s.t.WriteFull(hdr[:]); err != nil {
		return err
	}
	return s.t.Flush()
}

// errNoGrower marks a transport with a fixed-size buffer (shared memory):
// growth is simply impossible there, not an error condition -- the caller
// clips the served size instead.
var errNoGrower = errors.New("protocol: transport does not support buffer growth")

// grow asks the transport's Grower (if it has one) to grow to at least
// minSize, and refreshes the session's backing slice.
func (s *Session) grow(minSize int) error {
	if !s.canGrow {
		return errNoGrower
	}
	if err := s.buf.EnsureAtLeast(minSize); err != nil {
		return err
	}
	if minSize > len(s.rawBuf) {
		s.rawBuf = make([]byte, minSize)
	}
	return nil
}

// storeErrno picks the wire errno for a completed backing-store call. A
// real OS error is unwrapped to its syscall.Errno and passed through
// unchanged, so the client sees the same errno the backing store actually
// raised. A zero-byte transfer with no error is forced to E2BIG rather
// than reported as success, since that combination never reflects a
// genuine request outcome; the same forced value covers an error that
// carries no syscall.Errno (a plugin or VHD-engine failure with no real
// errno to surface).
func storeErrno(n int, err error) uint64 {
	if err == nil {
		if n == 0 {
			return errno.E2BIG
		}
		return errno.Success
	}
	var se syscall.Errno
	if errors.As(err, &se) {
		return uint64(se)
	}
	return errno.E2BIG
}
