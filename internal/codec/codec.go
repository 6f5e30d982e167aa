// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec implements the fixed-width integer load/store primitives
// shared by the protocol, VHD, and MBR layers. The three wire formats this
// server speaks disagree on byte order (VHD is big-endian, MBR is
// little-endian, the client/server protocol is host-order), so no single
// binary.Read call over a whole struct is correct for all of them; callers
// decode field by field instead.
package codec

// BEUint64 loads a big-endian 64-bit value, as used by the VHD footer's
// CurrentSize field.
func BEUint64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

// PutBEUint64 stores v as a big-endian 64-bit value into b.
func PutBEUint64(b []byte, v uint64) {
	_ = b[7]
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

// BEUint32 loads a big-endian 32-bit value, as used by VHD BAT entries and
// the header's TableOffset/BlockSize fields.
func BEUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutBEUint32 stores v as a big-endian 32-bit value into b.
func PutBEUint32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// BEUint16 loads a big-endian 16-bit value.
func BEUint16(b []byte) uint16 {
	_ = b[1]
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutBEUint16 stores v as a big-endian 16-bit value into b.
func PutBEUint16(b []byte, v uint16) {
	_ = b[1]
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// LEUint32 loads a little-endian 32-bit value, as used by MBR partition
// entries (LBA start, LBA count).
func LEUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PutLEUint32 stores v as a little-endian 32-bit value into b.
func PutLEUint32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// LEUint16 loads a little-endian 16-bit value.
func LEUint16(b []byte) uint16 {
	_ = b[1]
	return uint16(b[0]) | uint16(b[1])<<8
}

// PutLEUint16 stores v as a little-endian 16-bit value into b.
func PutLEUint16(b []byte, v uint16) {
	_ = b[1]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// HostUint64 loads a fixed-width 64-bit value in the wire order the
// client/server protocol uses. Both ends are assumed little-endian, per
// spec: the protocol never byte-swaps.
func HostUint64(b []byte) uint64 {
	return LEUint64(b)
}

// PutHostUint64 stores v in the protocol's wire order.
func PutHostUint64(b []byte, v uint64) {
	PutLEUint64(b, v)
}

// LEUint64 loads a little-endian 64-bit value.
func LEUint64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// PutLEUint64 stores v as a little-endian 64-bit value into b.
func PutLEUint64(b []byte, v uint64) {
	_ = b[7]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

// IsZero reports whether every byte of b is zero. Used by the VHD write
// path's allocate-on-write check: a sparse block is only allocated if the
// incoming data is not entirely zero.
func IsZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
