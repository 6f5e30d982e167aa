// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootstrap implements CLI flag parsing via kong, backing-store
// and VHD/MBR resolution, and transport selection, producing a
// protocol.Session ready to Run.
package bootstrap

// defaultBufferSize matches the original's DEF_BUFFER_SIZE, computed there
// as (sizeof(void*) << 3) << 20 -- on a 64-bit pointer that is 64 MiB.
// devio-go targets 64-bit platforms overwhelmingly, so this is a constant
// rather than a sizeof(uintptr(0))-derived expression.
const defaultBufferSize = 64 << 20

// defaultAlignment matches the original's DEF_REQUIRED_ALIGNMENT: no
// alignment constraint beyond byte granularity.
const defaultAlignment = 1

// CLI is the kong-tagged flag/argument set:
// devio [--dll=lib;entry] [--drv] [--novhd] [-r] <comm> <image>
//
//	[size|partno] [offset] [alignment] [bufsize]
type CLI struct {
	Dll       string `flag:"" name:"dll" help:"Load a custom backing-store plugin, given as path;symbol." placeholder:"path;symbol"`
	DllVerify string `flag:"" name:"dll-verify" help:"Require --dll's plugin file to match this hex-encoded PBKDF2 digest before loading it." placeholder:"hexdigest"`
	Drv       bool   `flag:"" name:"drv" help:"<comm> names a Windows client-driver object instead of a socket address."`
	NoVHD     bool   `flag:"" name:"novhd" help:"Skip dynamic-VHD detection; treat the image as a flat file."`
	ReadOnly  bool   `flag:"" name:"r" short:"r" help:"Open the backing store read-only."`
	Verbose   bool   `flag:"" name:"v" short:"v" help:"Log the resolved backing-store/transport configuration before serving."`

	Comm  string `arg:"" help:"Comm device: a TCP port, \"-\" for stdio, \"shm:<name>\", \"drv:<name>\", or a file/pipe path."`
	Image string `arg:"" help:"Path to the backing image, or the plugin's image name when --dll is set."`

	SizeOrPartNum string `arg:"" optional:"" help:"Explicit size (with B/K/M/G/T or b/k/m/g/t suffix), a block count, or a partition number (< 512)."`
	Offset        string `arg:"" optional:"" help:"Explicit image offset, same suffix rules as size."`
	Alignment     string `arg:"" optional:"" help:"Required client alignment in bytes."`
	BufSize       string `arg:"" optional:"" help:"Initial protocol buffer size, same suffix rules as size."`
}
