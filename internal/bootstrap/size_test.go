// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootstrap

import "testing"

func TestParseSizeBinarySuffixes(t *testing.T) {
	cases := map[string]int64{
		"1B": 1,
		"1K": 1 << 10,
		"1M": 1 << 20,
		"1G": 1 << 30,
		"1T": 1 << 40,
		"3K": 3 << 10,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeDecimalSuffixes(t *testing.T) {
	cases := map[string]int64{
		"1b": 1,
		"1k": 1000,
		"1m": 1000 * 1000,
		"1g": 1000 * 1000 * 1000,
		"1t": 1000 * 1000 * 1000 * 1000,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeBareNumericIsBlocks(t *testing.T) {
	got, err := parseSize("2048")
	if err != nil {
		t.Fatalf("parseSize: %v", err)
	}
	if want := int64(2048 * 512); got != want {
		t.Errorf("parseSize(\"2048\") = %d, want %d", got, want)
	}
}

func TestParseSizeInvalidSuffix(t *testing.T) {
	if _, err := parseSize("10X"); err == nil {
		t.Fatal("expected error for unsupported suffix")
	}
}

func TestParseSizeOrPartitionBelowThresholdIsPartition(t *testing.T) {
	got, err := parseSizeOrPartition("1")
	if err != nil {
		t.Fatalf("parseSizeOrPartition: %v", err)
	}
	if !got.isPartition || got.partNum != 1 {
		t.Errorf("got %+v, want partition 1", got)
	}
}

func TestParseSizeOrPartitionAtThresholdIsSize(t *testing.T) {
	got, err := parseSizeOrPartition("512")
	if err != nil {
		t.Fatalf("parseSizeOrPartition: %v", err)
	}
	if got.isPartition {
		t.Errorf("got %+v, want a size, not a partition", got)
	}
	if want := int64(512 * 512); got.bytes != want {
		t.Errorf("bytes = %d, want %d", got.bytes, want)
	}
}

func TestParseSizeOrPartitionSuffixedIsAlwaysSize(t *testing.T) {
	got, err := parseSizeOrPartition("1M")
	if err != nil {
		t.Fatalf("parseSizeOrPartition: %v", err)
	}
	if got.isPartition {
		t.Errorf("got %+v, want a size even though < 512 blocks", got)
	}
	if got.bytes != 1<<20 {
		t.Errorf("bytes = %d, want %d", got.bytes, 1<<20)
	}
}
