// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vhd

import (
	"bytes"
	"testing"

	"github.com/blockdevio/devio-go/internal/codec"
)

// memStore is a growable in-memory store.Store used to build synthetic VHD
// images for these tests without touching the filesystem.
type memStore struct {
	data []byte
}

func (m *memStore) PRead(dst []byte, offset int64) (int, error) {
	end := offset + int64(len(dst))
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	if offset >= end {
		return 0, nil
	}
	n := copy(dst, m.data[offset:end])
	return n, nil
}

func (m *memStore) PWrite(src []byte, offset int64) (int, error) {
	end := offset + int64(len(src))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[offset:end], src), nil
}

func (m *memStore) Close() error { return nil }
func (m *memStore) Size() int64  { return int64(len(m.data)) }

const (
	testBlockSize = 0x200000
	testBATCount  = 8
)

// buildImage constructs a minimal dynamic VHD: footer copy, header, BAT
// (all sparse), then a footer at the end.
func buildImage(t *testing.T, currentSize int64) (*memStore, int64 /* tableOffset */) {
	t.Helper()

	tableOffset := int64(FooterSize + HeaderSize)
	batBytes := int64(testBATCount) * 4
	footerPos := tableOffset + batBytes

	m := &memStore{data: make([]byte, footerPos+FooterSize)}

	f := make([]byte, FooterSize)
	copy(f[0:8], FooterCookie)
	codec.PutBEUint64(f[footerCurrentSizeOff:footerCurrentSizeOff+8], uint64(currentSize))
	codec.PutBEUint32(f[footerDiskTypeOffset:footerDiskTypeOffset+4], DiskTypeDynamic)

	h := make([]byte, HeaderSize)
	copy(h[0:8], HeaderCookie)
	codec.PutBEUint64(h[headerTableOffsetOffset:headerTableOffsetOffset+8], uint64(tableOffset))
	codec.PutBEUint32(h[headerMaxTableEntriesOffset:headerMaxTableEntriesOffset+4], testBATCount)
	codec.PutBEUint32(h[headerBlockSizeOffset:headerBlockSizeOffset+4], testBlockSize)

	bat := bytes.Repeat([]byte{0xFF, 0xFF, 0xFF, 0xFF}, testBATCount)

	if _, err := m.PWrite(f, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.PWrite(h, FooterSize); err != nil {
		t.Fatal(err)
	}
	if _, err := m.PWrite(bat, tableOffset); err != nil {
		t.Fatal(err)
	}
	if _, err := m.PWrite(f, footerPos); err != nil {
		t.Fatal(err)
	}
	return m, tableOffset
}

func TestDetectDynamicVHD(t *testing.T) {
	m, tableOffset := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if img.tableOffset != tableOffset {
		t.Errorf("tableOffset = %d, want %d", img.tableOffset, tableOffset)
	}
	if img.blockSize != testBlockSize {
		t.Errorf("blockSize = %d, want %d", img.blockSize, testBlockSize)
	}
	if img.blockShift != 21 {
		t.Errorf("blockShift = %d, want 21", img.blockShift)
	}
}

func TestDetectRejectsNonVHD(t *testing.T) {
	m := &memStore{data: make([]byte, infoSize)}
	if _, err := Detect(m); err != ErrNotDynamic {
		t.Errorf("Detect() error = %v, want ErrNotDynamic", err)
	}
}

func TestReadSparseBlockZeroFills(t *testing.T) {
	m, _ := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}
	dst := bytes.Repeat([]byte{0xAA}, 4096)
	n, err := img.ReadAt(dst, 0)
	if err != nil || n != 4096 {
		t.Fatalf("ReadAt() = (%d, %v), want (4096, nil)", n, err)
	}
	if !codec.IsZero(dst) {
		t.Error("ReadAt() on a sparse block did not zero-fill the buffer")
	}
}

func TestReadClipsAtDeviceEnd(t *testing.T) {
	m, _ := buildImage(t, 4096)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 8192)
	n, err := img.ReadAt(dst, 0)
	if err != nil || n != 0 {
		t.Fatalf("ReadAt() past device end = (%d, %v), want (0, nil)", n, err)
	}
}

func TestWriteZeroesNeverAllocate(t *testing.T) {
	m, tableOffset := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}
	sizeBefore := m.Size()

	zeros := make([]byte, 4096)
	blockOffset := int64(6) * testBlockSize
	n, err := img.WriteAt(zeros, blockOffset)
	if err != nil || n != 4096 {
		t.Fatalf("WriteAt() = (%d, %v), want (4096, nil)", n, err)
	}

	if m.Size() != sizeBefore {
		t.Errorf("image grew from a zero write: %d -> %d", sizeBefore, m.Size())
	}

	entryBuf := make([]byte, 4)
	m.PRead(entryBuf, tableOffset+4*6)
	if got := codec.BEUint32(entryBuf); got != SparseEntry {
		t.Errorf("BAT entry 6 = %#x, want sparse marker", got)
	}
}

func TestWriteAllocatesAndPreservesFooter(t *testing.T) {
	m, tableOffset := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}

	footerBefore := make([]byte, FooterSize)
	copy(footerBefore, m.data[len(m.data)-FooterSize:])

	data := bytes.Repeat([]byte{0xAA}, 512)
	blockOffset := int64(5) * testBlockSize
	n, err := img.WriteAt(data, blockOffset)
	if err != nil || n != 512 {
		t.Fatalf("WriteAt() = (%d, %v), want (512, nil)", n, err)
	}

	footerAfter := m.data[len(m.data)-FooterSize:]
	if !bytes.Equal(footerBefore, footerAfter) {
		t.Error("footer changed after block allocation, want byte-identical")
	}

	entryBuf := make([]byte, 4)
	m.PRead(entryBuf, tableOffset+4*5)
	entry := codec.BEUint32(entryBuf)
	if entry == SparseEntry {
		t.Fatal("BAT entry 5 still sparse after an allocating write")
	}

	physOffset := (int64(entry) << SectorShift) + SectorSize
	got := make([]byte, 512)
	m.PRead(got, physOffset)
	if !bytes.Equal(got, data) {
		t.Errorf("data at new block = %x, want %x", got, data)
	}

	bitmapByte := make([]byte, 1)
	m.PRead(bitmapByte, int64(entry)<<SectorShift)
	if bitmapByte[0] != 0xFF {
		t.Errorf("bitmap byte 0 = %#x, want 0xFF", bitmapByte[0])
	}

	// Read-after-write round trip.
	roundTrip := make([]byte, 512)
	if _, err := img.ReadAt(roundTrip, blockOffset); err != nil {
		t.Fatalf("ReadAt() after WriteAt() error = %v", err)
	}
	if !bytes.Equal(roundTrip, data) {
		t.Errorf("round-trip read = %x, want %x", roundTrip, data)
	}
}

func TestAllocatedBlocksCountsNonSparseEntries(t *testing.T) {
	m, _ := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}

	n, err := img.AllocatedBlocks()
	if err != nil {
		t.Fatalf("AllocatedBlocks() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("AllocatedBlocks() on a fresh image = %d, want 0", n)
	}

	data := bytes.Repeat([]byte{0x7E}, 512)
	if _, err := img.WriteAt(data, int64(2)*testBlockSize); err != nil {
		t.Fatal(err)
	}
	if _, err := img.WriteAt(data, int64(5)*testBlockSize); err != nil {
		t.Fatal(err)
	}

	n, err = img.AllocatedBlocks()
	if err != nil {
		t.Fatalf("AllocatedBlocks() error = %v", err)
	}
	if n != 2 {
		t.Errorf("AllocatedBlocks() after two allocating writes = %d, want 2", n)
	}
}

func TestWriteSpanningTwoBlocksRecurses(t *testing.T) {
	m, _ := buildImage(t, int64(testBATCount)*testBlockSize)
	img, err := Detect(m)
	if err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0x42}, 1024)
	offset := testBlockSize - 512
	n, err := img.WriteAt(data, int64(offset))
	if err != nil || n != len(data) {
		t.Fatalf("WriteAt() across a block boundary = (%d, %v), want (%d, nil)", n, err, len(data))
	}

	got := make([]byte, len(data))
	if _, err := img.ReadAt(got, int64(offset)); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("cross-block round trip = %x, want %x", got, data)
	}
}
