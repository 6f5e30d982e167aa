// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blockdevio/devio-go/internal/buffer"
	"github.com/blockdevio/devio-go/internal/transport"
	"github.com/blockdevio/devio-go/internal/transport/driver"
	"github.com/blockdevio/devio-go/internal/transport/shm"
	"github.com/blockdevio/devio-go/internal/transport/socket"
)

// openedTransport bundles the selected transport with the buffer plumbing
// protocol.Session needs: the shared protocol buffer, its backing slice,
// and whether this transport supports growing it.
type openedTransport struct {
	t       transport.Transport
	buf     *buffer.Buffer
	rawBuf  []byte
	canGrow bool
}

// openTransport dispatches on the <comm> grammar: a decimal TCP port, "-"
// for stdio, "shm:<name>", "drv:<name>", or any other string as a file/
// pipe path. --drv forces driver selection with comm taken verbatim as
// the device name, matching the original's drv_mode flag.
func openTransport(comm string, drvFlag bool, bufferSize int) (*openedTransport, error) {
	switch {
	case drvFlag:
		return openDriverTransport(comm, bufferSize)
	case comm == "-":
		s := socket.Stdio(bufferSize)
		return &openedTransport{t: s, buf: buffer.New(bufferSize, s), rawBuf: s.Pool.Buf, canGrow: true}, nil
	case strings.HasPrefix(comm, "shm:"):
		return openShmTransport(strings.TrimPrefix(comm, "shm:"), bufferSize)
	case strings.HasPrefix(comm, "drv:"):
		return openDriverTransport(strings.TrimPrefix(comm, "drv:"), bufferSize)
	default:
		if port, err := strconv.Atoi(comm); err == nil {
			s, err := socket.ListenTCP(port, bufferSize)
			if err != nil {
				return nil, err
			}
			return &openedTransport{t: s, buf: buffer.New(bufferSize, s), rawBuf: s.Pool.Buf, canGrow: true}, nil
		}
		s, err := socket.OpenPath(comm, bufferSize)
		if err != nil {
			return nil, err
		}
		return &openedTransport{t: s, buf: buffer.New(bufferSize, s), rawBuf: s.Pool.Buf, canGrow: true}, nil
	}
}

func openShmTransport(name string, bufferSize int) (*openedTransport, error) {
	s, err := openShm(name, bufferSize)
	if err != nil {
		if err == shm.ErrAlreadyRunning {
			return nil, fmt.Errorf("bootstrap: shared-memory name %q already bound: %w", name, err)
		}
		return nil, err
	}
	// The shared-memory region's size is fixed at whatever the OS granted
	// the mapping; EnsureAtLeast is never asked to grow past it because
	// canGrow is false, so the Grower passed here is never invoked. It
	// still needs a value to satisfy buffer.New's signature.
	return &openedTransport{t: s, buf: buffer.New(bufferSize, noopGrower{}), rawBuf: make([]byte, bufferSize), canGrow: false}, nil
}

func openDriverTransport(name string, bufferSize int) (*openedTransport, error) {
	d, err := driver.Open(name, bufferSize)
	if err != nil {
		return nil, err
	}
	return &openedTransport{t: d, buf: buffer.New(bufferSize, d), rawBuf: make([]byte, bufferSize), canGrow: true}, nil
}

// noopGrower backs a buffer.Buffer for a transport whose buffer can never
// grow (shared memory); it exists only to satisfy buffer.New's Grower
// parameter and is never called because the session is constructed with
// canGrow == false.
type noopGrower struct{}

func (noopGrower) Grow(int) error {
	return fmt.Errorf("bootstrap: this transport's buffer cannot grow")
}
