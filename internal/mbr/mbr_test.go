// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mbr

import (
	"testing"

	"github.com/blockdevio/devio-go/internal/codec"
)

type memStore struct{ data []byte }

func (m *memStore) PRead(dst []byte, offset int64) (int, error) {
	return copy(dst, m.data[offset:offset+int64(len(dst))]), nil
}
func (m *memStore) PWrite(src []byte, offset int64) (int, error) {
	return copy(m.data[offset:], src), nil
}
func (m *memStore) Close() error { return nil }
func (m *memStore) Size() int64  { return int64(len(m.data)) }

func putEntry(sector []byte, idx int, bootable, typ byte, lbaStart, lbaCount uint32) {
	off := entriesOffset + idx*entrySize
	sector[off+bootFlagOff] = bootable
	sector[off+typeOff] = typ
	codec.PutLEUint32(sector[off+lbaStartOff:off+lbaStartOff+4], lbaStart)
	codec.PutLEUint32(sector[off+lbaCountOff:off+lbaCountOff+4], lbaCount)
}

func newSector() []byte {
	sector := make([]byte, sectorSize)
	sector[signatureOffset] = 0x55
	sector[signatureOffset+1] = 0xAA
	return sector
}

func TestResolvePrimaryPartition(t *testing.T) {
	sector := newSector()
	putEntry(sector, 0, 0x80, 0x07, 2048, 204800)
	m := &memStore{data: sector}

	offset, size, err := Resolve(m, 1)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if offset != 2048*512 || size != 204800*512 {
		t.Errorf("Resolve() = (%d, %d), want (%d, %d)", offset, size, 2048*512, 204800*512)
	}
}

func TestResolveRejectsBadBootFlag(t *testing.T) {
	sector := newSector()
	putEntry(sector, 0, 0x40, 0x07, 2048, 204800)
	m := &memStore{data: sector}

	if _, _, err := Resolve(m, 1); err != ErrNoMBR {
		t.Errorf("Resolve() error = %v, want ErrNoMBR", err)
	}
}

func TestResolveMissingPartition(t *testing.T) {
	sector := newSector()
	putEntry(sector, 0, 0x80, 0x07, 2048, 204800)
	m := &memStore{data: sector}

	if _, _, err := Resolve(m, 2); err != ErrPartitionNotFound {
		t.Errorf("Resolve() error = %v, want ErrPartitionNotFound", err)
	}
}

func TestResolveExtendedPartitionChain(t *testing.T) {
	mbrSector := newSector()
	putEntry(mbrSector, 0, 0x80, 0x07, 2048, 204800)
	putEntry(mbrSector, 1, 0x00, typeExtendedLBA, 300000, 400000)

	data := make([]byte, 400000*512+sectorSize)
	copy(data, mbrSector)

	firstEBR := int64(300000) * sectorSize
	ebr1 := newSector()
	putEntry(ebr1, 0, 0x00, 0x07, 2048, 102400) // logical partition
	copy(data[firstEBR:firstEBR+sectorSize], ebr1)

	m := &memStore{data: data}

	offset, size, err := Resolve(m, 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	wantOffset := firstEBR + 2048*sectorSize
	wantSize := int64(102400) * sectorSize
	if offset != wantOffset || size != wantSize {
		t.Errorf("Resolve() = (%d, %d), want (%d, %d)", offset, size, wantOffset, wantSize)
	}
}
