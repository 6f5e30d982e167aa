// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package store

import "golang.org/x/sys/unix"

// directFlag returns the O_DIRECT bit on platforms that define one.
func directFlag() int {
	return unix.O_DIRECT
}

// syncFlag returns the O_SYNC bit.
func syncFlag() int {
	return unix.O_SYNC
}
