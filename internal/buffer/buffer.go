// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer implements the single protocol buffer's monotone growth
// policy. The buffer is never shrunk; how growth is actually carried out
// (reallocate two heap buffers, no-op, or remap a driver-pinned region) is
// transport-specific and lives behind the Grower interface, not here.
package buffer

import (
	"errors"
	"fmt"
)

// maxGrow bounds growth to half of the address-space maximum.
const maxGrow = (1 << 62)

// ErrTooLarge is returned when a requested size would exceed the growth
// ceiling.
var ErrTooLarge = errors.New("buffer: requested size exceeds growth ceiling")

// Grower performs the transport-specific mechanics of growing the shared
// buffer to at least newSize bytes. Implementations must leave the buffer
// usable even on failure (the shared-memory transport's is a no-op; the
// driver transport's falls back to the previous region on allocation
// failure).
type Grower interface {
	Grow(newSize int) error
}

// Buffer tracks the current size of the single logical protocol buffer and
// enforces that it never shrinks during a session.
type Buffer struct {
	size   int
	grower Grower
}

// New returns a Buffer starting at initialSize, grown through g.
func New(initialSize int, g Grower) *Buffer {
	return &Buffer{size: initialSize, grower: g}
}

// Size returns the current buffer size.
func (b *Buffer) Size() int {
	return b.size
}

// EnsureAtLeast grows the buffer to at least minSize if it is not already
// that large. It is a no-op, and never shrinks, if the buffer already
// satisfies minSize.
func (b *Buffer) EnsureAtLeast(minSize int) error {
	if minSize <= b.size {
		return nil
	}
	if minSize > maxGrow {
		return fmt.Errorf("%w: %d", ErrTooLarge, minSize)
	}
	if err := b.grower.Grow(minSize); err != nil {
		return err
	}
	b.size = minSize
	return nil
}
