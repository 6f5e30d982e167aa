// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import "testing"

type fakeGrower struct {
	grown []int
	err   error
}

func (g *fakeGrower) Grow(newSize int) error {
	g.grown = append(g.grown, newSize)
	return g.err
}

func TestEnsureAtLeastGrowsOnce(t *testing.T) {
	g := &fakeGrower{}
	b := New(65536, g)

	if err := b.EnsureAtLeast(131072); err != nil {
		t.Fatalf("EnsureAtLeast() error = %v", err)
	}
	if b.Size() != 131072 {
		t.Errorf("Size() = %d, want 131072", b.Size())
	}
	if len(g.grown) != 1 || g.grown[0] != 131072 {
		t.Errorf("grower called with %v, want [131072]", g.grown)
	}
}

func TestEnsureAtLeastNoopWhenAlreadyBigEnough(t *testing.T) {
	g := &fakeGrower{}
	b := New(131072, g)

	if err := b.EnsureAtLeast(1024); err != nil {
		t.Fatalf("EnsureAtLeast() error = %v", err)
	}
	if b.Size() != 131072 {
		t.Errorf("Size() = %d, want 131072 (never shrinks)", b.Size())
	}
	if len(g.grown) != 0 {
		t.Errorf("grower called %d times, want 0", len(g.grown))
	}
}

func TestEnsureAtLeastPropagatesGrowerError(t *testing.T) {
	g := &fakeGrower{err: ErrTooLarge}
	b := New(1024, g)

	if err := b.EnsureAtLeast(2048); err == nil {
		t.Fatal("EnsureAtLeast() error = nil, want non-nil")
	}
	if b.Size() != 1024 {
		t.Errorf("Size() = %d after failed grow, want unchanged 1024", b.Size())
	}
}

func TestMonotoneGrowthAcrossCalls(t *testing.T) {
	g := &fakeGrower{}
	b := New(1024, g)
	sizes := []int{2048, 4096, 1024, 8192}
	for _, s := range sizes {
		if err := b.EnsureAtLeast(s); err != nil {
			t.Fatalf("EnsureAtLeast(%d) error = %v", s, err)
		}
	}
	if b.Size() != 8192 {
		t.Errorf("final Size() = %d, want 8192", b.Size())
	}
}
