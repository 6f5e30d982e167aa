// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vhd implements the dynamic-VHD logical-to-physical address layer:
// footer/header parsing, BAT lookup, sparse-block zero-fill on read, and
// block allocation with bitmap maintenance on write. Layout matches the
// Microsoft VHD image format bit-for-bit.
package vhd

import (
	"errors"

	"github.com/blockdevio/devio-go/internal/codec"
)

const (
	// FooterCookie identifies the 512-byte footer record.
	FooterCookie = "conectix"
	// HeaderCookie identifies the 1024-byte dynamic-disk header record.
	HeaderCookie = "cxsparse"

	// FooterSize is the size in bytes of the footer record. The footer
	// must remain the last FooterSize bytes of the file at all times.
	FooterSize = 512
	// HeaderSize is the size in bytes of the dynamic-disk header record.
	HeaderSize = 1024

	// SectorSize is the VHD sector granularity.
	SectorSize = 512
	// SectorShift is log2(SectorSize).
	SectorShift = 9

	// DiskTypeDynamic is the DiskType value the VHD specification
	// reserves for dynamic (sparse) disks.
	DiskTypeDynamic = 3

	// SparseEntry is the BAT entry value meaning "block not allocated".
	SparseEntry = 0xFFFFFFFF

	footerCookieOffset   = 0
	footerCurrentSizeOff = 48
	footerDiskGeometry   = 56
	footerDiskTypeOffset = 60

	headerCookieOffset          = 0
	headerTableOffsetOffset     = 16
	headerMaxTableEntriesOffset = 28
	headerBlockSizeOffset       = 32
)

var (
	// ErrNotDynamic is returned by Detect when the image is not a
	// dynamic VHD (wrong cookies or DiskType).
	ErrNotDynamic = errors.New("vhd: not a dynamic disk image")
	// ErrBadBlockSize is returned when the header's BlockSize is not a
	// power of two.
	ErrBadBlockSize = errors.New("vhd: block size is not a power of two")
)

// footer holds the parsed fields of the 512-byte footer record plus the
// verbatim bytes, which are re-appended after every block allocation.
type footer struct {
	raw         [FooterSize]byte
	currentSize uint64
	diskType    uint32
}

func parseFooter(b []byte) (footer, error) {
	var f footer
	if len(b) < FooterSize {
		return f, errors.New("vhd: short footer read")
	}
	copy(f.raw[:], b[:FooterSize])
	if string(f.raw[footerCookieOffset:footerCookieOffset+8]) != FooterCookie {
		return f, ErrNotDynamic
	}
	f.currentSize = codec.BEUint64(f.raw[footerCurrentSizeOff : footerCurrentSizeOff+8])
	f.diskType = codec.BEUint32(f.raw[footerDiskTypeOffset : footerDiskTypeOffset+4])
	return f, nil
}

// header holds the parsed fields of the 1024-byte dynamic-disk header
// record that follow the BAT's shape.
type header struct {
	tableOffset     int64
	maxTableEntries uint32
	blockSize       uint32
}

func parseHeader(b []byte) (header, error) {
	var h header
	if len(b) < HeaderSize {
		return h, errors.New("vhd: short header read")
	}
	if string(b[headerCookieOffset:headerCookieOffset+8]) != HeaderCookie {
		return h, ErrNotDynamic
	}
	h.tableOffset = int64(codec.BEUint64(b[headerTableOffsetOffset : headerTableOffsetOffset+8]))
	h.maxTableEntries = codec.BEUint32(b[headerMaxTableEntriesOffset : headerMaxTableEntriesOffset+4])
	h.blockSize = codec.BEUint32(b[headerBlockSizeOffset : headerBlockSizeOffset+4])
	return h, nil
}

func log2(n uint32) (uint, error) {
	if n == 0 || n&(n-1) != 0 {
		return 0, ErrBadBlockSize
	}
	var shift uint
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift, nil
}
