// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shm implements the shared-memory transport: a fixed-size region
// with an 8-byte header area followed by the I/O buffer, exchanged with
// the client through a pair of auto-reset Request/Response signals and
// guarded by a server-uniqueness lock. The region layout and
// cursor-reset-on-flush rule are platform-independent; the concrete named
// kernel objects backing the signals and the lock are not, so those live
// in shm_windows.go and shm_nix.go behind build tags.
package shm

import "errors"

// headerSize is the fixed header area preceding the I/O buffer in the
// shared region.
const headerSize = 8

// ErrAlreadyRunning is returned when a second server instance attempts to
// bind the same shared-memory name: the "_Server" mutex is already held.
var ErrAlreadyRunning = errors.New("shm: a server is already bound to this name")

// regionName applies the namespace prefix: "Global\\" when the global
// object namespace is reachable, empty otherwise.
func regionName(prefix, name string) string {
	return prefix + name
}

func requestName(prefix, name string) string  { return prefix + name + "_Request" }
func responseName(prefix, name string) string { return prefix + name + "_Response" }
func serverName(prefix, name string) string   { return prefix + name + "_Server" }
