// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logical

import (
	"bytes"
	"testing"
)

type memStore struct{ data []byte }

func (m *memStore) PRead(dst []byte, offset int64) (int, error) {
	return copy(dst, m.data[offset:]), nil
}
func (m *memStore) PWrite(src []byte, offset int64) (int, error) {
	return copy(m.data[offset:], src), nil
}
func (m *memStore) Close() error { return nil }
func (m *memStore) Size() int64  { return int64(len(m.data)) }

func TestReadAtAppliesImageOffset(t *testing.T) {
	data := make([]byte, 1<<20)
	copy(data[1048576-4:], []byte{1, 2, 3, 4})
	// imageOffset below points at the last 4 bytes of the 1 MiB fixture,
	// so logical offset 0 must read the marker bytes written there; this
	// test exercises raw-file dispatch only (no VHD engine).
	m := &memStore{data: data}
	dev := New(m, nil, 1048572, 4)

	got := make([]byte, 4)
	if n, err := dev.ReadAt(got, 0); err != nil || n != 4 {
		t.Fatalf("ReadAt() = (%d, %v), want (4, nil)", n, err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadAt() = %v, want [1 2 3 4]", got)
	}
}

func TestWriteAtAppliesImageOffset(t *testing.T) {
	m := &memStore{data: make([]byte, 2048)}
	dev := New(m, nil, 1024, 1024)

	if n, err := dev.WriteAt([]byte{0xAA, 0xBB}, 10); err != nil || n != 2 {
		t.Fatalf("WriteAt() = (%d, %v)", n, err)
	}
	if m.data[1034] != 0xAA || m.data[1035] != 0xBB {
		t.Errorf("WriteAt() did not land at imageOffset+offset")
	}
}

func TestSize(t *testing.T) {
	dev := New(&memStore{}, nil, 0, 104857600)
	if got := dev.Size(); got != 104857600 {
		t.Errorf("Size() = %d, want 104857600", got)
	}
}
