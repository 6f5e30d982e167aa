// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// FileStore backs a Store with a host file descriptor.
type FileStore struct {
	f *os.File
}

// OpenFile opens path as a backing store. It requests O_DIRECT and O_SYNC
// when the platform defines them, and retries once without O_DIRECT if the
// first open fails with EINVAL -- not every filesystem a backing image can
// sit on supports it, and the original devio.c falls back the same way
// rather than treating it as a fatal misconfiguration.
func OpenFile(path string, readOnly bool) (*FileStore, error) {
	mode := os.O_RDWR
	if readOnly {
		mode = os.O_RDONLY
	}

	f, err := os.OpenFile(path, mode|directFlag()|syncFlag(), 0)
	if err != nil && errors.Is(err, syscall.EINVAL) {
		f, err = os.OpenFile(path, mode|syncFlag(), 0)
	}
	if err != nil {
		return nil, fmt.Errorf("open backing file %q: %w", path, err)
	}

	if !readOnly {
		if err := dismountVolume(f, path); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &FileStore{f: f}, nil
}

// PRead reads into dst starting at offset. A short read at end-of-file is
// reported as (n, nil), not (n, io.EOF): the protocol layer surfaces a
// short read as errorno=0 with the actual transfer count, and pread(2)
// itself has no EOF error, only a short count.
func (s *FileStore) PRead(dst []byte, offset int64) (int, error) {
	n, err := s.f.ReadAt(dst, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (s *FileStore) PWrite(src []byte, offset int64) (int, error) {
	return s.f.WriteAt(src, offset)
}

func (s *FileStore) Close() error {
	return s.f.Close()
}

func (s *FileStore) Size() int64 {
	fi, err := s.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// File exposes the underlying *os.File for callers (the VHD engine's
// footer-relocation path) that need Seek/Truncate beyond the Store
// interface's pread/pwrite surface.
func (s *FileStore) File() *os.File {
	return s.f
}
