// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package driver

// Open always fails on non-Windows builds: there is no kernel driver
// object to exchange overlapped IOCTLs with outside Windows.
func Open(name string, bufferSize int) (*Driver, error) {
	return nil, ErrNotSupported
}

// Driver is an empty placeholder on non-Windows builds so the type exists
// for bootstrap's transport-selection switch regardless of GOOS.
type Driver struct{}

func (d *Driver) ReadFull(buf []byte) error  { return ErrNotSupported }
func (d *Driver) WriteFull(buf []byte) error { return ErrNotSupported }
func (d *Driver) Flush() error               { return ErrNotSupported }
func (d *Driver) Close() error               { return nil }
func (d *Driver) Grow(newSize int) error     { return ErrNotSupported }
