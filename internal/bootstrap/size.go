// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"fmt"
	"strconv"
)

// defaultSectorSize is the block unit a bare numeric size/offset argument
// is multiplied by.
const defaultSectorSize = 512

// parseSize parses a CLI size/offset argument: an uppercase B/K/M/G/T
// suffix scales by powers of 1024, a lowercase b/k/m/g/t suffix scales by
// powers of 1000, and a bare numeric argument (no suffix) is a count of
// 512-byte blocks.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("bootstrap: empty size argument")
	}

	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bootstrap: invalid size %q: %w", s, err)
		}
		return n * defaultSectorSize, nil
	}

	digits := s[:len(s)-1]
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: invalid size %q: %w", s, err)
	}

	shift, factor, err := suffixScale(last)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: %q: %w", s, err)
	}
	if shift > 0 {
		return n << shift, nil
	}
	return n * factor, nil
}

// suffixScale returns either a binary left-shift amount (for uppercase
// suffixes) or a decimal multiplication factor (for lowercase suffixes).
// Exactly one of the two return values is meaningful for a given suffix.
func suffixScale(suf byte) (shift uint, factor int64, err error) {
	switch suf {
	case 'B':
		return 0, 1, nil
	case 'K':
		return 10, 0, nil
	case 'M':
		return 20, 0, nil
	case 'G':
		return 30, 0, nil
	case 'T':
		return 40, 0, nil
	case 'b':
		return 0, 1, nil
	case 'k':
		return 0, 1000, nil
	case 'm':
		return 0, 1000 * 1000, nil
	case 'g':
		return 0, 1000 * 1000 * 1000, nil
	case 't':
		return 0, 1000 * 1000 * 1000 * 1000, nil
	default:
		return 0, 0, fmt.Errorf("unsupported size suffix %q", suf)
	}
}

// sizeOrPartition is the result of parsing the CLI's third positional
// argument, which is ambiguous between an explicit size and a partition
// number: a bare numeric below 512 is a partition number, at or above 512
// it is a block count.
type sizeOrPartition struct {
	bytes       int64
	partNum     int
	isPartition bool
}

// parseSizeOrPartition resolves that ambiguity: a suffixed argument is
// always an explicit size; a bare numeric argument below 512 selects a
// partition instead (no single-partition image is under 512 bytes, so the
// two readings never collide), and at or above 512 is a block count.
func parseSizeOrPartition(s string) (sizeOrPartition, error) {
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		bytes, err := parseSize(s)
		if err != nil {
			return sizeOrPartition{}, err
		}
		return sizeOrPartition{bytes: bytes}, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sizeOrPartition{}, fmt.Errorf("bootstrap: invalid size/partition %q: %w", s, err)
	}
	if n < defaultSectorSize {
		return sizeOrPartition{partNum: int(n), isPartition: true}, nil
	}
	return sizeOrPartition{bytes: n * defaultSectorSize}, nil
}
