// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/blockdevio/devio-go/internal/cmdutil"
	"github.com/blockdevio/devio-go/internal/mbr"
	"github.com/blockdevio/devio-go/internal/plugin"
	"github.com/blockdevio/devio-go/internal/store"
	"github.com/blockdevio/devio-go/internal/vhd"
)

// ErrPartitionOutOfRange is returned when the resolved partition's
// (offset, size) would run past the backing store's current size (the
// VHD's logical size when one was detected), or when the resolved size is
// zero.
var ErrPartitionOutOfRange = errors.New("bootstrap: partition runs past the backing store's current size")

// BackingStore is everything bootstrap derives about the image before the
// protocol engine starts: the opened store, the VHD engine if detected,
// and the logical (offset, size) the client will see.
type BackingStore struct {
	Store       store.Store
	VHD         *vhd.Image // nil unless a dynamic VHD was detected
	ImageOffset int64
	FileSize    int64
}

// openStore opens the backing store: a plugin if --dll is given,
// otherwise a host file.
func openStore(cli *CLI) (store.Store, error) {
	if cli.Dll != "" {
		path, symbol, err := plugin.ParseSpec(cli.Dll)
		if err != nil {
			return nil, err
		}
		if cli.DllVerify != "" {
			if err := plugin.VerifyDigest(path, cli.DllVerify); err != nil {
				return nil, err
			}
		}
		p, err := plugin.Load(path, symbol)
		if err != nil {
			return nil, err
		}
		return store.OpenPlugin(p, cli.Image, cli.ReadOnly)
	}
	if err := cmdutil.ValidateAccessibleFile(cli.Image); err != nil {
		return nil, fmt.Errorf("bootstrap: image argument: %w", err)
	}
	return store.OpenFile(cli.Image, cli.ReadOnly)
}

// ResolveBackingStore opens the backing store, optionally detects a
// dynamic VHD, and resolves the logical (offset, size) the client will
// see.
func ResolveBackingStore(cli *CLI) (*BackingStore, error) {
	s, err := openStore(cli)
	if err != nil {
		return nil, err
	}

	var img *vhd.Image
	currentSize := s.Size()
	if !cli.NoVHD {
		if detected, err := vhd.Detect(s); err == nil {
			img = detected
			currentSize = detected.Size()
		} else if !errors.Is(err, vhd.ErrNotDynamic) {
			s.Close()
			return nil, fmt.Errorf("bootstrap: vhd detection: %w", err)
		}
	}

	// The MBR/EBR walk reads through the VHD translation when a dynamic
	// VHD was detected: the original's logical_read dispatches to
	// vhd_read in that case, not a raw pread against the file. addrReader
	// presents whichever is in effect as a plain store.Store for
	// internal/mbr, which only needs PRead.
	offset, size, err := resolveAddressing(cli, addrReader{img: img, s: s}, currentSize)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &BackingStore{Store: s, VHD: img, ImageOffset: offset, FileSize: size}, nil
}

// addrReader adapts a store (optionally VHD-translated) to the
// store.Store interface internal/mbr expects, for the MBR/EBR walk that
// happens before a logical.Device exists.
type addrReader struct {
	img *vhd.Image
	s   store.Store
}

func (r addrReader) PRead(dst []byte, offset int64) (int, error) {
	if r.img != nil {
		return r.img.ReadAt(dst, offset)
	}
	return r.s.PRead(dst, offset)
}

func (r addrReader) PWrite(src []byte, offset int64) (int, error) {
	return 0, fmt.Errorf("bootstrap: addrReader is read-only")
}

func (r addrReader) Close() error { return nil }

func (r addrReader) Size() int64 {
	if r.img != nil {
		return r.img.Size()
	}
	return r.s.Size()
}

// resolveAddressing determines file_size from the CLI's size/partition
// argument (falling back to an MBR partition walk, default partition 1),
// then applies an explicit offset override, and finally rejects with
// ErrPartitionOutOfRange a zero size or an (offset, size) that runs past
// currentSize when it is meaningfully known (nonzero).
func resolveAddressing(cli *CLI, s store.Store, currentSize int64) (offset, size int64, err error) {
	partNum := 1
	explicitSize := false
	var explicitBytes int64

	if cli.SizeOrPartNum != "" {
		parsed, err := parseSizeOrPartition(cli.SizeOrPartNum)
		if err != nil {
			return 0, 0, err
		}
		if parsed.isPartition {
			partNum = parsed.partNum
		} else {
			explicitSize = true
			explicitBytes = parsed.bytes
		}
	}

	if explicitSize {
		size = explicitBytes
	} else if partNum >= 1 && partNum <= 511 {
		off, sz, merr := mbr.Resolve(s, partNum)
		switch {
		case merr == nil:
			offset, size = off, sz
		case errors.Is(merr, mbr.ErrNoMBR):
			size = currentSize
		default:
			return 0, 0, fmt.Errorf("bootstrap: partition %d: %w", partNum, merr)
		}
	} else {
		size = currentSize
	}

	// An explicit offset argument only applies when the partition walk
	// left image_offset at zero, matching the original's "if
	// (image_offset == 0 && argc > 4)" guard: a partition entry's own
	// offset always wins over a stale positional argument.
	if cli.Offset != "" && offset == 0 {
		off, err := parseSize(cli.Offset)
		if err != nil {
			return 0, 0, err
		}
		offset = off
	}

	if size == 0 {
		return 0, 0, fmt.Errorf("%w: resolved size is zero", ErrPartitionOutOfRange)
	}
	if currentSize != 0 && offset+size > currentSize {
		return 0, 0, ErrPartitionOutOfRange
	}

	return offset, size, nil
}

// resolveAlignment parses the alignment positional argument, a plain byte
// count with no suffix grammar, defaulting to defaultAlignment.
func resolveAlignment(cli *CLI) (uint64, error) {
	if cli.Alignment == "" {
		return defaultAlignment, nil
	}
	n, err := strconv.ParseUint(cli.Alignment, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: invalid alignment %q: %w", cli.Alignment, err)
	}
	return n, nil
}

// ResolveBufferSize parses the bufsize positional argument using the same
// suffix grammar as size/offset, defaulting to defaultBufferSize. Exported
// for cmd/deviostat, which reports the resolved size without opening a
// transport.
func ResolveBufferSize(cli *CLI) (int, error) {
	if cli.BufSize == "" {
		return defaultBufferSize, nil
	}
	n, err := parseSize(cli.BufSize)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
