// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package driver

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const deviceNamespace = `\\.\`

// IOCTL codes for the two overlapped control operations this transport
// exchanges with the client driver: lock-memory and exchange-I/O. Values
// are constructed the way Windows IOCTLs normally are (FILE_DEVICE_UNKNOWN,
// METHOD_BUFFERED, FILE_ANY_ACCESS); the specific numbers are local to
// this transport, not an ABI any real kernel driver is promised to
// implement.
const (
	fileDeviceUnknown = 0x00000022
	methodBuffered    = 0
	fileAnyAccess     = 0

	ioctlLockMemory = (fileDeviceUnknown << 16) | (fileAnyAccess << 14) | (0x801 << 2) | methodBuffered
	ioctlExchangeIO = (fileDeviceUnknown << 16) | (fileAnyAccess << 14) | (0x802 << 2) | methodBuffered
)

// Driver is the Windows client-driver transport.
type Driver struct {
	mu sync.Mutex

	handle windows.Handle
	name   string

	region []byte
	size   int

	lockOverlapped  windows.Overlapped
	lockOutstanding bool

	cursor, writeCursor int
}

// Open opens the device object at <DeviceNamespace>\<name> and issues the
// initial lock-memory operation against a freshly allocated region of
// bufferSize bytes.
func Open(name string, bufferSize int) (*Driver, error) {
	path := deviceNamespace + name
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("driver: encode device path: %w", err)
	}
	h, err := windows.CreateFile(pathPtr, windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_FLAG_OVERLAPPED, 0)
	if err != nil {
		return nil, fmt.Errorf("driver: open %q: %w", path, err)
	}

	d := &Driver{handle: h, name: name, region: make([]byte, bufferSize), size: bufferSize}
	if err := d.lockMemory(); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	return d, nil
}

// lockMemory issues the lock-memory IOCTL asynchronously: it hands the
// region's pointer and length to the driver and returns immediately,
// leaving the operation outstanding while the server continues exchanging
// requests.
func (d *Driver) lockMemory() error {
	var bytesReturned uint32
	err := windows.DeviceIoControl(d.handle, ioctlLockMemory,
		(*byte)(unsafe.Pointer(&d.region[0])), uint32(len(d.region)),
		nil, 0, &bytesReturned, &d.lockOverlapped)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return fmt.Errorf("driver: lock memory: %w", err)
	}
	d.lockOutstanding = true
	return nil
}

// awaitLockCompletion waits for the outstanding lock-memory operation,
// accepting ERROR_INSUFFICIENT_BUFFER as an expected completion code (the
// previous region was too small, which is exactly why we are about to
// replace it).
func (d *Driver) awaitLockCompletion() error {
	if !d.lockOutstanding {
		return nil
	}
	var transferred uint32
	err := windows.GetOverlappedResult(d.handle, &d.lockOverlapped, &transferred, true)
	d.lockOutstanding = false
	if err != nil && err != windows.ERROR_INSUFFICIENT_BUFFER {
		return fmt.Errorf("driver: await lock completion: %w", err)
	}
	return nil
}

// exchange performs the blocking exchange-I/O operation: it hands the
// pinned region to the driver and the call completes once a request has
// been deposited there.
func (d *Driver) exchange() error {
	var overlapped windows.Overlapped
	var bytesReturned uint32
	err := windows.DeviceIoControl(d.handle, ioctlExchangeIO,
		(*byte)(unsafe.Pointer(&d.region[0])), uint32(len(d.region)),
		(*byte)(unsafe.Pointer(&d.region[0])), uint32(len(d.region)),
		&bytesReturned, &overlapped)
	if err == windows.ERROR_IO_PENDING {
		err = windows.GetOverlappedResult(d.handle, &overlapped, &bytesReturned, true)
	}
	if err == windows.ERROR_FILE_NOT_FOUND || err == windows.ERROR_DEV_NOT_EXIST {
		return ErrDeviceGone
	}
	if err == windows.ERROR_INSUFFICIENT_BUFFER {
		return windows.ERROR_INSUFFICIENT_BUFFER
	}
	if err != nil {
		return fmt.Errorf("driver: exchange: %w", err)
	}
	return nil
}

// ReadFull performs one exchange if the region has not yet been
// refreshed for this request, then copies out of it. An exchange or copy
// that does not fit the region returns ERROR_INSUFFICIENT_BUFFER; the
// protocol engine does not grow the region or retry in response, so that
// error ends the session. Grow runs only when a READ asks for more bytes
// than the buffer holds.
func (d *Driver) ReadFull(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cursor == 0 {
		if err := d.exchange(); err != nil {
			return err
		}
	}
	if d.cursor+len(buf) > len(d.region) {
		return windows.ERROR_INSUFFICIENT_BUFFER
	}
	copy(buf, d.region[d.cursor:d.cursor+len(buf)])
	d.cursor += len(buf)
	return nil
}

func (d *Driver) WriteFull(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeCursor+len(buf) > len(d.region) {
		return windows.ERROR_INSUFFICIENT_BUFFER
	}
	copy(d.region[d.writeCursor:d.writeCursor+len(buf)], buf)
	d.writeCursor += len(buf)
	return nil
}

// Flush resets both cursors, the same cursor-reset convention every
// transport in this package follows.
func (d *Driver) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = 0
	d.writeCursor = 0
	return nil
}

// Grow implements the driver's growth protocol: wait for the outstanding
// lock to complete, unmap, allocate a new region, re-lock it, and copy
// the old header across. On allocation failure the previous region is
// left untouched.
func (d *Driver) Grow(newSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.awaitLockCompletion(); err != nil {
		return err
	}

	newRegion := make([]byte, newSize)
	copy(newRegion, d.region)
	old := d.region
	d.region = newRegion
	d.size = newSize

	if err := d.lockMemory(); err != nil {
		d.region = old
		d.size = len(old)
		return err
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return windows.CloseHandle(d.handle)
}
