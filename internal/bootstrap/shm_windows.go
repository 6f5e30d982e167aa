// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package bootstrap

import "github.com/blockdevio/devio-go/internal/transport/shm"

// openShm opens the shared-memory transport through the Windows named file
// mapping/event implementation.
func openShm(name string, bufferSize int) (*shm.SharedMemory, error) {
	return shm.Open(name, bufferSize)
}
