// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mbr parses a Master Boot Record and its chain of Extended Boot
// Records to resolve a partition number to an (offset, size) pair.
package mbr

import (
	"errors"

	"github.com/blockdevio/devio-go/internal/codec"
	"github.com/blockdevio/devio-go/internal/store"
)

const (
	sectorSize = 512

	signatureOffset = 510
	entriesOffset   = 446
	entrySize       = 16

	bootFlagOff  = 0
	typeOff      = 4
	lbaStartOff  = 8
	lbaCountOff  = 12

	typeExtendedCHS = 0x05
	typeExtendedLBA = 0x0F
)

var (
	// ErrNoMBR is returned when the leading sector does not carry a
	// valid MBR signature or boot flags.
	ErrNoMBR = errors.New("mbr: no valid master boot record")
	// ErrPartitionNotFound is returned when the requested partition
	// number does not exist in the table or extended chain.
	ErrPartitionNotFound = errors.New("mbr: partition not found")
)

// Entry is one partition table entry, in bytes.
type Entry struct {
	Bootable byte
	Type     byte
	LBAStart uint32
	LBACount uint32
}

func parseEntry(b []byte) Entry {
	return Entry{
		Bootable: b[bootFlagOff],
		Type:     b[typeOff],
		LBAStart: codec.LEUint32(b[lbaStartOff : lbaStartOff+4]),
		LBACount: codec.LEUint32(b[lbaCountOff : lbaCountOff+4]),
	}
}

func isExtended(t byte) bool {
	return t == typeExtendedCHS || t == typeExtendedLBA
}

// Valid reports whether sector carries a valid MBR: the 0x55 0xAA signature
// at bytes 510-511, and every partition entry's boot flag is either 0x00 or
// 0x80.
func Valid(sector []byte) bool {
	if len(sector) < sectorSize {
		return false
	}
	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return false
	}
	for i := 0; i < 4; i++ {
		off := entriesOffset + i*entrySize
		flag := sector[off+bootFlagOff]
		if flag != 0x00 && flag != 0x80 {
			return false
		}
	}
	return true
}

// Resolve reads the MBR sector and, if partNum names an extended partition
// chain entry, walks the EBR chain, returning the byte offset and size of
// the selected partition. partNum is 1-based across the four primary
// entries and, for an extended partition, continues numbering into the EBR
// chain in the order encountered; the extended entry itself takes no number.
func Resolve(s store.Store, partNum int) (offset, size int64, err error) {
	sector := make([]byte, sectorSize)
	if _, err := s.PRead(sector, 0); err != nil {
		return 0, 0, err
	}
	if !Valid(sector) {
		return 0, 0, ErrNoMBR
	}

	n := 0
	for i := 0; i < 4; i++ {
		off := entriesOffset + i*entrySize
		e := parseEntry(sector[off : off+entrySize])
		if e.LBACount == 0 {
			continue
		}
		if isExtended(e.Type) {
			firstEBR := int64(e.LBAStart) * sectorSize
			return resolveExtended(s, firstEBR, firstEBR, partNum, &n)
		}
		n++
		if n == partNum {
			return int64(e.LBAStart) * sectorSize, int64(e.LBACount) * sectorSize, nil
		}
	}
	return 0, 0, ErrPartitionNotFound
}

// resolveExtended walks the EBR chain starting at ebrOffset. A link to the
// next EBR is relative to firstEBR (the first EBR in the chain); a logical
// partition's start is relative to the EBR that holds its entry.
func resolveExtended(s store.Store, ebrOffset, firstEBR int64, partNum int, n *int) (offset, size int64, err error) {
	for ebrOffset != 0 {
		sector := make([]byte, sectorSize)
		if _, err := s.PRead(sector, ebrOffset); err != nil {
			return 0, 0, err
		}
		if !Valid(sector) {
			return 0, 0, ErrNoMBR
		}

		var nextEBR int64
		found := false
		var foundOffset, foundSize int64

		for i := 0; i < 2; i++ {
			off := entriesOffset + i*entrySize
			e := parseEntry(sector[off : off+entrySize])
			if e.LBACount == 0 {
				continue
			}
			if isExtended(e.Type) {
				nextEBR = firstEBR + int64(e.LBAStart)*sectorSize
				continue
			}
			*n++
			if *n == partNum {
				foundOffset = ebrOffset + int64(e.LBAStart)*sectorSize
				foundSize = int64(e.LBACount) * sectorSize
				found = true
			}
		}
		if found {
			return foundOffset, foundSize, nil
		}
		if nextEBR == 0 || nextEBR == ebrOffset {
			break
		}
		ebrOffset = nextEBR
	}
	return 0, 0, ErrPartitionNotFound
}
