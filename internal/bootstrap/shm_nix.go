// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package bootstrap

import (
	"os"

	"github.com/blockdevio/devio-go/internal/transport/shm"
)

// shmDir picks the directory the POSIX shared-memory transport backs its
// region and lock files in: /dev/shm when present (a tmpfs, avoiding disk
// I/O for what Windows would keep in the page-file-backed section object),
// falling back to the process's temp directory otherwise.
func shmDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// openShm opens the shared-memory transport under the platform-appropriate
// directory.
func openShm(name string, bufferSize int) (*shm.SharedMemory, error) {
	return shm.Open(shmDir(), name, bufferSize)
}
