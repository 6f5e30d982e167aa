// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errno carries the small set of POSIX-style error numbers the
// wire protocol reports in its "errorno" response field. A real backing-
// store error is reported through its actual syscall.Errno value, since
// the client and server share the same errno numbering; these named
// constants cover the cases the protocol engine itself manufactures
// rather than reads off a syscall error.
package errno

const (
	// Success is the zero errorno value meaning the request completed.
	Success uint64 = 0
	// E2BIG is substituted when a read or write reports a zero-byte
	// transfer with no error -- a combination that never reflects a
	// genuine successful outcome -- or when an error carries no
	// syscall.Errno to surface verbatim.
	E2BIG uint64 = 7
	// EBADF is returned for a WRITE against a read-only device.
	EBADF uint64 = 9
	// ENODEV is returned for any request code the protocol engine does
	// not recognize.
	ENODEV uint64 = 19
)
