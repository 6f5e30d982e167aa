// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package shm

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SharedMemory is the Windows implementation of the shared-memory
// transport: a named file mapping backs the region, two named auto-reset
// events carry the Request/Response signals, and a named mutex enforces
// server uniqueness -- a second devio instance bound to the same name
// fails Open with ErrAlreadyRunning.
type SharedMemory struct {
	mu sync.Mutex

	mapping windows.Handle
	addr    uintptr
	size    int

	serverMutex windows.Handle
	requestEvt  windows.Handle
	responseEvt windows.Handle

	readCursor, writeCursor int
	awaitingRequest         bool
}

func namespacePrefix() string {
	// "Global\\" is reachable unless running inside a sandboxed session
	// with no access to the global kernel object namespace; CreateMutex
	// failing with ERROR_ACCESS_DENIED on the Global-prefixed name is
	// the signal to retry unprefixed.
	return `Global\`
}

// Open creates the named file mapping, events, and server mutex.
func Open(name string, bufferSize int) (*SharedMemory, error) {
	prefix := namespacePrefix()
	size := headerSize + bufferSize

	mutexName := windows.StringToUTF16Ptr(serverName(prefix, name))
	mutex, err := windows.CreateMutex(nil, false, mutexName)
	if err == windows.ERROR_ACCESS_DENIED && prefix != "" {
		prefix = ""
		mutex, err = windows.CreateMutex(nil, false, windows.StringToUTF16Ptr(serverName(prefix, name)))
	}
	if err == windows.ERROR_ALREADY_EXISTS {
		windows.CloseHandle(mutex)
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("shm: create server mutex: %w", err)
	}

	mapName := windows.StringToUTF16Ptr(regionName(prefix, name))
	mapping, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), mapName)
	if err != nil {
		windows.CloseHandle(mutex)
		return nil, fmt.Errorf("shm: create file mapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_ALL_ACCESS, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapping)
		windows.CloseHandle(mutex)
		return nil, fmt.Errorf("shm: map view of file: %w", err)
	}

	reqEvtName := windows.StringToUTF16Ptr(requestName(prefix, name))
	reqEvt, err := windows.CreateEvent(nil, 0 /* auto-reset */, 0, reqEvtName)
	if err != nil {
		return nil, fmt.Errorf("shm: create request event: %w", err)
	}
	respEvtName := windows.StringToUTF16Ptr(responseName(prefix, name))
	respEvt, err := windows.CreateEvent(nil, 0 /* auto-reset */, 0, respEvtName)
	if err != nil {
		return nil, fmt.Errorf("shm: create response event: %w", err)
	}

	return &SharedMemory{
		mapping:         mapping,
		addr:            addr,
		size:            size,
		serverMutex:     mutex,
		requestEvt:      reqEvt,
		responseEvt:     respEvt,
		awaitingRequest: true,
	}, nil
}

func (s *SharedMemory) regionAt(offset int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(s.addr+uintptr(offset))), s.size-offset)
}

func (s *SharedMemory) waitRequest() error {
	ev, err := windows.WaitForSingleObject(s.requestEvt, windows.INFINITE)
	if err != nil {
		return err
	}
	if ev != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("shm: unexpected wait result %d", ev)
	}
	return nil
}

// ReadFull mirrors shm_nix.go's cursor/event semantics: the first read of a
// request cycle blocks on the Request event, later reads in the same cycle
// do not.
func (s *SharedMemory) ReadFull(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaitingRequest {
		if err := s.waitRequest(); err != nil {
			return err
		}
		s.awaitingRequest = false
	}
	region := s.regionAt(headerSize + s.readCursor)
	if len(region) < len(buf) {
		return fmt.Errorf("shm: read past end of region")
	}
	copy(buf, region[:len(buf)])
	s.readCursor += len(buf)
	return nil
}

func (s *SharedMemory) WriteFull(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	region := s.regionAt(headerSize + s.writeCursor)
	if len(region) < len(buf) {
		return fmt.Errorf("shm: write past end of region")
	}
	copy(region[:len(buf)], buf)
	s.writeCursor += len(buf)
	return nil
}

// Flush resets both cursors, signals Response, and re-arms the Request
// wait.
func (s *SharedMemory) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCursor = 0
	s.writeCursor = 0
	s.awaitingRequest = true
	return windows.SetEvent(s.responseEvt)
}

func (s *SharedMemory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows.UnmapViewOfFile(s.addr)
	windows.CloseHandle(s.mapping)
	windows.CloseHandle(s.requestEvt)
	windows.CloseHandle(s.responseEvt)
	return windows.CloseHandle(s.serverMutex)
}
