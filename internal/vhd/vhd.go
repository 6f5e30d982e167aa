// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhd

import (
	"fmt"

	"github.com/blockdevio/devio-go/internal/codec"
	"github.com/blockdevio/devio-go/internal/store"
)

// Image is the derived state of a dynamic VHD, computed once at
// bootstrap.
type Image struct {
	s store.Store

	currentSize     int64
	blockSize       uint32
	blockShift      uint
	tableOffset     int64
	maxTableEntries uint32
	footer          footer
}

// infoSize is sizeof(VHD_INFO): the leading footer copy immediately
// followed by the dynamic-disk header, which is everything Detect needs to
// read to identify and parse a dynamic VHD.
const infoSize = FooterSize + HeaderSize

// Detect reads the leading sizeof(VHD_INFO) bytes of s and returns an
// Image if they describe a dynamic VHD. It returns ErrNotDynamic
// (unwrapped, checkable with errors.Is) if s is not a dynamic VHD.
func Detect(s store.Store) (*Image, error) {
	buf := make([]byte, infoSize)
	if _, err := s.PRead(buf, 0); err != nil {
		return nil, fmt.Errorf("vhd: read leading info block: %w", err)
	}

	f, err := parseFooter(buf[:FooterSize])
	if err != nil {
		return nil, err
	}
	if f.diskType != DiskTypeDynamic {
		return nil, ErrNotDynamic
	}
	h, err := parseHeader(buf[FooterSize:infoSize])
	if err != nil {
		return nil, err
	}
	shift, err := log2(h.blockSize)
	if err != nil {
		return nil, err
	}

	return &Image{
		s:               s,
		currentSize:     int64(f.currentSize),
		blockSize:       h.blockSize,
		blockShift:      shift,
		tableOffset:     h.tableOffset,
		maxTableEntries: h.maxTableEntries,
		footer:          f,
	}, nil
}

// Size returns the logical device size recorded in the footer.
func (img *Image) Size() int64 {
	return img.currentSize
}

// AllocatedBlocks counts the BAT entries that point at an actual block
// rather than SparseEntry, for cmd/deviostat's devio_vhd_blocks_allocated_total
// gauge.
func (img *Image) AllocatedBlocks() (int, error) {
	entry := make([]byte, 4)
	n := 0
	for i := uint32(0); i < img.maxTableEntries; i++ {
		if _, err := img.s.PRead(entry, img.tableOffset+4*int64(i)); err != nil {
			return 0, fmt.Errorf("vhd: read BAT entry %d: %w", i, err)
		}
		if codec.BEUint32(entry) != SparseEntry {
			n++
		}
	}
	return n, nil
}

// BlockSize returns the VHD block size in bytes.
func (img *Image) BlockSize() uint32 {
	return img.blockSize
}

func (img *Image) batEntryOffset(offset int64) int64 {
	blockIndex := offset >> img.blockShift
	return img.tableOffset + 4*blockIndex
}

func (img *Image) readBATEntry(offset int64) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := img.s.PRead(buf, img.batEntryOffset(offset)); err != nil {
		return 0, fmt.Errorf("vhd: read BAT entry: %w", err)
	}
	return codec.BEUint32(buf), nil
}

func (img *Image) writeBATEntry(offset int64, sector uint32) error {
	buf := make([]byte, 4)
	codec.PutBEUint32(buf, sector)
	if _, err := img.s.PWrite(buf, img.batEntryOffset(offset)); err != nil {
		return fmt.Errorf("vhd: write BAT entry: %w", err)
	}
	return nil
}

// splitAtBlock returns the size of the part of (offset, size) that fits in
// the block containing offset, and whether a tail beyond that block
// remains.
func (img *Image) splitAtBlock(offset int64, size int) (firstSize int, hasTail bool) {
	inBlock := offset & (int64(img.blockSize) - 1)
	if int64(size)+inBlock > int64(img.blockSize) {
		return int(int64(img.blockSize) - inBlock), true
	}
	return size, false
}

// ReadAt implements the VHD read path: clip to device size, split at
// block boundaries, resolve each block through the BAT, and zero-fill
// sparse blocks without touching the backing store.
func (img *Image) ReadAt(dst []byte, offset int64) (int, error) {
	size := len(dst)
	if offset+int64(size) > img.currentSize {
		return 0, nil
	}
	if size == 0 {
		return 0, nil
	}

	firstSize, hasTail := img.splitAtBlock(offset, size)

	entry, err := img.readBATEntry(offset)
	if err != nil {
		return 0, err
	}

	var n int
	if entry == SparseEntry {
		for i := 0; i < firstSize; i++ {
			dst[i] = 0
		}
		n = firstSize
	} else {
		inBlock := offset & (int64(img.blockSize) - 1)
		physOffset := (int64(entry) << SectorShift) + SectorSize + inBlock
		got, err := img.s.PRead(dst[:firstSize], physOffset)
		if err != nil {
			return 0, err
		}
		n = got
	}

	if !hasTail {
		return n, nil
	}
	tailOffset := offset + int64(firstSize)
	tailN, err := img.ReadAt(dst[firstSize:], tailOffset)
	return n + tailN, err
}

// allocateBlock grows the image by one block, preserving the footer
// invariant: the new block (bitmap sector + data) is written where the
// footer currently sits, and the saved footer is re-appended immediately
// after. It returns the new block's starting sector.
func (img *Image) allocateBlock() (uint32, error) {
	footerPos := img.s.Size() - FooterSize
	if footerPos < 0 {
		return 0, fmt.Errorf("vhd: backing store shorter than a footer")
	}

	zeros := make([]byte, SectorSize+int(img.blockSize))
	if n, err := img.s.PWrite(zeros, footerPos); err != nil || n != len(zeros) {
		if err == nil {
			err = fmt.Errorf("vhd: short write allocating block (%d of %d)", n, len(zeros))
		}
		return 0, err
	}
	if n, err := img.s.PWrite(img.footer.raw[:], footerPos+int64(len(zeros))); err != nil || n != FooterSize {
		if err == nil {
			err = fmt.Errorf("vhd: short write re-appending footer (%d of %d)", n, FooterSize)
		}
		return 0, err
	}

	return uint32(footerPos >> SectorShift), nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// writeBitmap marks the sectors touched by a first_size-byte write starting
// inBlock bytes into the block as allocated.
func (img *Image) writeBitmap(blockSector uint32, inBlock int64, firstSize int) error {
	bitmapByteOffset := (inBlock >> SectorShift) >> 3
	n := ceilDiv(ceilDiv(firstSize, SectorSize), 8)
	ones := make([]byte, n)
	for i := range ones {
		ones[i] = 0xFF
	}
	physOffset := (int64(blockSector) << SectorShift) + bitmapByteOffset
	if wn, err := img.s.PWrite(ones, physOffset); err != nil || wn != n {
		if err == nil {
			err = fmt.Errorf("vhd: short bitmap write (%d of %d)", wn, n)
		}
		return err
	}
	return nil
}

// WriteAt implements the VHD write path: clip, split, allocate sparse
// blocks lazily (never for an all-zero write), write the data, update the
// bitmap, and recurse on any tail.
func (img *Image) WriteAt(src []byte, offset int64) (int, error) {
	size := len(src)
	if offset+int64(size) > img.currentSize {
		return 0, nil
	}
	if size == 0 {
		return 0, nil
	}

	firstSize, hasTail := img.splitAtBlock(offset, size)
	inBlock := offset & (int64(img.blockSize) - 1)

	entry, err := img.readBATEntry(offset)
	if err != nil {
		return 0, err
	}

	var blockSector uint32
	switch {
	case entry == SparseEntry && codec.IsZero(src[:firstSize]):
		if !hasTail {
			return firstSize, nil
		}
		tailN, err := img.WriteAt(src[firstSize:], offset+int64(firstSize))
		return firstSize + tailN, err
	case entry == SparseEntry:
		blockSector, err = img.allocateBlock()
		if err != nil {
			return 0, err
		}
		if err := img.writeBATEntry(offset, blockSector); err != nil {
			return 0, err
		}
	default:
		blockSector = entry
	}

	physOffset := (int64(blockSector) << SectorShift) + SectorSize + inBlock
	n, err := img.s.PWrite(src[:firstSize], physOffset)
	if err != nil {
		return 0, err
	}
	if err := img.writeBitmap(blockSector, inBlock, firstSize); err != nil {
		return n, err
	}

	if !hasTail {
		return n, nil
	}
	tailN, err := img.WriteAt(src[firstSize:], offset+int64(firstSize))
	return n + tailN, err
}
