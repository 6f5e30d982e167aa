// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package store

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

const (
	fsctlLockVolume     = 0x00090018
	fsctlDismountVolume = 0x00090020
)

// isVolumePath reports whether path names a Windows volume directly --
// \\.\X: or \\.\PhysicalDriveN -- rather than a regular file sitting on
// one. The volume manager keeps its own handle open on a live volume, and
// a plain CreateFile against it does not evict that handle by itself.
func isVolumePath(path string) bool {
	return strings.HasPrefix(path, `\\.\`)
}

// dismountVolume locks and then dismounts the volume backing f so the
// volume manager releases its hold before devio starts issuing raw sector
// writes against it. It does nothing for a path that isn't a volume.
func dismountVolume(f *os.File, path string) error {
	if !isVolumePath(path) {
		return nil
	}
	h := windows.Handle(f.Fd())
	var bytesReturned uint32
	if err := windows.DeviceIoControl(h, fsctlLockVolume, nil, 0, nil, 0, &bytesReturned, nil); err != nil {
		return fmt.Errorf("%w: lock %q: %v", ErrCannotDismountVolume, path, err)
	}
	if err := windows.DeviceIoControl(h, fsctlDismountVolume, nil, 0, nil, 0, &bytesReturned, nil); err != nil {
		return fmt.Errorf("%w: dismount %q: %v", ErrCannotDismountVolume, path, err)
	}
	return nil
}
