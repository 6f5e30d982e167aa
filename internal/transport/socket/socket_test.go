// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socket

import (
	"net"
	"testing"

	"github.com/blockdevio/devio-go/internal/transport"
)

func TestReadFullWriteFullRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := &Socket{rw: server, Pool: NewPool(16)}

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 5)
		done <- s.ReadFull(buf)
		if string(buf) != "hello" {
			t.Errorf("read %q, want %q", buf, "hello")
		}
	}()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
}

func TestReadFullReportsConnectionClosed(t *testing.T) {
	client, server := net.Pipe()
	s := &Socket{rw: server, Pool: NewPool(16)}

	client.Close()
	buf := make([]byte, 4)
	err := s.ReadFull(buf)
	if err != transport.ErrConnectionClosed {
		t.Fatalf("ReadFull after peer close = %v, want ErrConnectionClosed", err)
	}
}

func TestPoolGrowReplacesBothBuffers(t *testing.T) {
	p := NewPool(64)
	oldBuf := p.Buf
	if err := p.Grow(128); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if len(p.Buf) != 128 || len(p.Buf2) != 128 {
		t.Fatalf("Buf/Buf2 lengths = %d/%d, want 128", len(p.Buf), len(p.Buf2))
	}
	if &p.Buf[0] == &oldBuf[0] {
		t.Fatal("Grow did not reallocate Buf")
	}
}

func TestSocketGrowDelegatesToPool(t *testing.T) {
	s := &Socket{Pool: NewPool(32)}
	if err := s.Grow(256); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if len(s.Pool.Buf) != 256 {
		t.Fatalf("Pool.Buf length = %d, want 256", len(s.Pool.Buf))
	}
}
