// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package store

import "os"

// dismountVolume is a no-op outside Windows: no other platform here opens
// a live volume out from under its own volume manager, so there is
// nothing to lock or dismount.
func dismountVolume(f *os.File, path string) error {
	return nil
}
