// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver implements the client-driver transport: an overlapped
// exchange ioctl against a lockable shared region, grown through Grow when
// the protocol engine asks for a larger buffer. The kernel driver this talks
// to (\\.\<name>) only exists on Windows, so the real implementation lives
// in driver_windows.go; driver_other.go reports a configuration error,
// matching how the "drv:" comm device is rejected at bootstrap on a
// non-Windows build.
package driver

import "errors"

// ErrNotSupported is returned by Open on a platform with no driver
// transport.
var ErrNotSupported = errors.New("driver transport requires a Windows build")

// ErrDeviceGone is the transport-level signal for a DEV_NOT_EXIST
// completion: the client closed its device object, a clean termination,
// not a failure.
var ErrDeviceGone = errors.New("driver: client device object no longer exists")
