// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package store

import "syscall"

// directFlag returns 0 on platforms with no O_DIRECT equivalent; FileStore
// falls back silently rather than treating the absence as fatal.
func directFlag() int {
	return 0
}

// syncFlag returns the O_SYNC bit where syscall defines one.
func syncFlag() int {
	return syscall.O_SYNC
}
