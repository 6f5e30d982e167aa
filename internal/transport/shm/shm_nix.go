// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package shm

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// SharedMemory is the POSIX analogue of the Windows shared-memory
// transport: a file-backed mmap region plays the role of the named
// Windows file mapping, and a pair of FIFOs stand in for the named
// auto-reset Request/Response events (POSIX has no named-event kernel
// object, and golang.org/x/sys/unix exposes no sem_open binding, so a
// blocking FIFO read/write pair is the closest analogue buildable from
// the same syscall package). The server-uniqueness lock is an flock(2) on
// a side file, standing in for the "_Server" named mutex.
type SharedMemory struct {
	mu sync.Mutex

	region []byte
	file   *os.File

	lockFile *os.File

	reqR, reqW *os.File
	respR, respW *os.File

	readCursor, writeCursor int
	awaitingRequest         bool

	name string
}

// Open maps a region of headerSize+bufferSize bytes backed by a file named
// after name under dir (ordinarily an OS-appropriate shared-object
// directory, e.g. /dev/shm on Linux), creates the Request/Response FIFOs,
// and takes the server-uniqueness lock.
func Open(dir, name string, bufferSize int) (*SharedMemory, error) {
	lockPath := dir + "/" + serverName("", name) + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open server lock: %w", err)
	}
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, ErrAlreadyRunning
	}

	regionPath := dir + "/" + regionName("", name)
	f, err := os.OpenFile(regionPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("shm: open region file: %w", err)
	}
	size := headerSize + bufferSize
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		lockFile.Close()
		return nil, fmt.Errorf("shm: truncate region: %w", err)
	}
	region, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		lockFile.Close()
		return nil, fmt.Errorf("shm: mmap region: %w", err)
	}

	reqPath := dir + "/" + requestName("", name) + ".fifo"
	respPath := dir + "/" + responseName("", name) + ".fifo"
	for _, p := range []string{reqPath, respPath} {
		_ = os.Remove(p)
		if err := unix.Mkfifo(p, 0o600); err != nil {
			return nil, fmt.Errorf("shm: create fifo %q: %w", p, err)
		}
	}

	s := &SharedMemory{
		region:          region,
		file:            f,
		lockFile:        lockFile,
		name:            name,
		awaitingRequest: true,
	}

	// Opening a FIFO for reading blocks until a writer appears, and vice
	// versa; opening both ends ourselves keeps the server from blocking
	// at startup before any client has attached.
	if s.reqR, err = os.OpenFile(reqPath, os.O_RDWR, 0); err != nil {
		return nil, fmt.Errorf("shm: open request fifo: %w", err)
	}
	if s.respW, err = os.OpenFile(respPath, os.O_RDWR, 0); err != nil {
		return nil, fmt.Errorf("shm: open response fifo: %w", err)
	}

	return s, nil
}

// waitRequest blocks until the client signals the Request event by
// writing a single byte to the request FIFO.
func (s *SharedMemory) waitRequest() error {
	var b [1]byte
	_, err := s.reqR.Read(b[:])
	return err
}

// signalResponse signals the Response event by writing a single byte to
// the response FIFO.
func (s *SharedMemory) signalResponse() error {
	_, err := s.respW.Write([]byte{1})
	return err
}

// ReadFull copies len(buf) bytes from the region's read cursor. The first
// read of a request cycle blocks on the Request event; subsequent reads
// within the same cycle (the write payload following a WRITE header) do
// not, since all of a request's bytes are deposited before Request is
// signaled.
func (s *SharedMemory) ReadFull(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaitingRequest {
		if err := s.waitRequest(); err != nil {
			return err
		}
		s.awaitingRequest = false
	}
	start := headerSize + s.readCursor
	if start+len(buf) > len(s.region) {
		return fmt.Errorf("shm: read past end of region")
	}
	copy(buf, s.region[start:start+len(buf)])
	s.readCursor += len(buf)
	return nil
}

// WriteFull copies len(buf) bytes to the region's write cursor.
func (s *SharedMemory) WriteFull(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := headerSize + s.writeCursor
	if start+len(buf) > len(s.region) {
		return fmt.Errorf("shm: write past end of region")
	}
	copy(s.region[start:start+len(buf)], buf)
	s.writeCursor += len(buf)
	return nil
}

// Flush resets both cursors to the region's base, signals Response (the
// server's reply is now fully deposited), and re-arms the wait for the
// next Request.
func (s *SharedMemory) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCursor = 0
	s.writeCursor = 0
	s.awaitingRequest = true
	return s.signalResponse()
}

// ErrFixedSize names the shared-memory transport's fixed buffer: the
// region's size is set by what the OS granted the mapping at Open time
// (Linux tmpfs grants exactly what was ftruncate'd, with no extra slack to
// grow into). SharedMemory has no Grow method.
var ErrFixedSize = fmt.Errorf("shm: buffer size is fixed for this transport")

func (s *SharedMemory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(unix.Munmap(s.region))
	record(s.file.Close())
	if s.reqR != nil {
		record(s.reqR.Close())
	}
	if s.respW != nil {
		record(s.respW.Close())
	}
	record(unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN))
	record(s.lockFile.Close())
	return firstErr
}
