// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store implements the backing-store abstraction: a uniform
// pread/pwrite/close surface over either a host file or a caller-supplied
// plugin. OpenFile and OpenPlugin build the two concrete implementations;
// the caller that chooses between them passes the result on as a Store.
package store

import "errors"

var (
	// ErrPluginOpenFailed is returned when a plugin's Open call signals
	// failure through its distinguished sentinel return value.
	ErrPluginOpenFailed = errors.New("plugin open returned the failure sentinel")

	// ErrCannotDismountVolume is returned when OpenFile is asked to open a
	// Windows volume path for writing and the volume manager won't release
	// its own lock on it. Never returned on platforms with no volume manager
	// to contend with.
	ErrCannotDismountVolume = errors.New("store: cannot lock and dismount volume")
)

// Store is the uniform backing-store surface. Implementations report bytes
// transferred or an error; they never panic on short transfer, callers are
// expected to surface the condition through the protocol layer.
type Store interface {
	PRead(dst []byte, offset int64) (int, error)
	PWrite(src []byte, offset int64) (int, error)
	Close() error
	// Size returns the size of the backing store in bytes, or 0 if it
	// cannot be determined (e.g. a plugin that doesn't report one).
	Size() int64
}
