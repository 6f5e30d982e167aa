// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logical composes the partition offset, an optional VHD engine,
// and the backing store into a single (read, write) surface over logical
// addresses.
package logical

import (
	"github.com/blockdevio/devio-go/internal/store"
	"github.com/blockdevio/devio-go/internal/vhd"
)

// Device dispatches reads and writes to the VHD engine or directly to the
// backing store, based on which is present -- the original's single mode
// flag set at startup is simply "vhd != nil" here, not a separate enum.
type Device struct {
	store       store.Store
	vhd         *vhd.Image
	imageOffset int64
	fileSize    int64
}

// New builds a Device. If img is non-nil, reads and writes are translated
// through it; otherwise they go straight to s. imageOffset is the logical
// base a partition walk resolved (0 for a whole-image device), and
// fileSize is the logical device size reported to clients.
func New(s store.Store, img *vhd.Image, imageOffset, fileSize int64) *Device {
	return &Device{store: s, vhd: img, imageOffset: imageOffset, fileSize: fileSize}
}

// Size returns the logical device size.
func (d *Device) Size() int64 {
	return d.fileSize
}

func (d *Device) physical(offset int64) int64 {
	return d.imageOffset + offset
}

// ReadAt reads len(dst) bytes starting at logical offset. Short reads at
// end-of-device are reported verbatim rather than padded or treated as an
// error.
func (d *Device) ReadAt(dst []byte, offset int64) (int, error) {
	phys := d.physical(offset)
	if d.vhd != nil {
		return d.vhd.ReadAt(dst, phys)
	}
	return d.store.PRead(dst, phys)
}

// WriteAt writes len(src) bytes starting at logical offset.
func (d *Device) WriteAt(src []byte, offset int64) (int, error) {
	phys := d.physical(offset)
	if d.vhd != nil {
		return d.vhd.WriteAt(src, phys)
	}
	return d.store.PWrite(src, phys)
}
