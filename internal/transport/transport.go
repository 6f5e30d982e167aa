// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport defines the common transport capability set --
// {read(n), write(n), flush()} dispatched through a single interface
// instead of mode flags threaded through each I/O function -- so the
// protocol engine never needs to know which concrete transport it is
// driving.
package transport

import "errors"

// ErrConnectionClosed is returned by ReadFull/WriteFull when the transport
// observed a short transfer or the peer closing.
var ErrConnectionClosed = errors.New("connection closed")

// Transport is the common surface the protocol engine drives. A single
// buffer is shared between inbound and outbound use; see Grower for the
// buffer-growth capability some transports support.
type Transport interface {
	// ReadFull reads exactly len(buf) bytes, retrying on short transfers,
	// and returns ErrConnectionClosed if the peer closes before that.
	ReadFull(buf []byte) error
	// WriteFull writes exactly len(buf) bytes, retrying on short
	// transfers, and returns ErrConnectionClosed if the peer closes
	// before that.
	WriteFull(buf []byte) error
	// Flush resets any transport-level read/write cursor to its base
	// position. Socket transports treat this as a no-op.
	Flush() error
	Close() error
}

// Grower is implemented by transports whose buffer can grow on demand
// (socket, driver). The shared-memory transport does not implement it:
// its region size is fixed at whatever the OS granted the mapping.
type Grower interface {
	Grow(newSize int) error
}
