// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command devio serves a single block-device client over a socket,
// shared-memory, or driver transport, proxying reads and writes against a
// raw image file, a dynamic VHD, or a caller-supplied storage plugin.
package main

import (
	"errors"
	"log"
	"os"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/blockdevio/devio-go/internal/bootstrap"
	"github.com/blockdevio/devio-go/internal/store"
	"github.com/blockdevio/devio-go/internal/transport/driver"
	"github.com/blockdevio/devio-go/internal/vhd"
)

// Exit codes: 0 normal termination, 1 configuration error, 2 transport/
// resource error, 9 cannot dismount a volume being opened for write, -1
// usage error.
const (
	exitOK             = 0
	exitConfig         = 1
	exitTransport      = 2
	exitCannotDismount = 9
	exitUsage          = -1
)

const (
	programName = "devio"
	programDesc = "Proxy a raw image, dynamic VHD, or storage plugin as a block device over a socket, shared-memory, or driver transport"
)

func main() {
	os.Exit(run())
}

// run parses the command line, bootstraps the session, and serves it. It
// never calls os.Exit directly so that the deferred panic recovery below
// always runs first.
func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			// The closest idiomatic-Go equivalent of the original's
			// top-level structured-exception handler: log the panic value
			// and a stack trace, then report the fatal-exception exit
			// code.
			log.Printf("fatal: %v\n%s", r, debug.Stack())
			code = exitUsage
		}
	}()

	var cli bootstrap.CLI
	parser, err := kong.New(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.Exit(func(int) {}), // parse errors fall through to our own exit classification below
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}))
	if err != nil {
		log.Printf("fatal: building CLI parser: %v", err)
		return exitConfig
	}
	if _, err := parser.Parse(os.Args[1:]); err != nil {
		log.Printf("usage: %v", err)
		return exitUsage
	}

	res, err := bootstrap.Open(&cli)
	if err != nil {
		return classifyBootstrapError(err)
	}
	defer res.Close()

	if err := res.Session.Run(); err != nil {
		log.Printf("fatal: %v", err)
		return exitTransport
	}
	return exitOK
}

// classifyBootstrapError maps a bootstrap failure to an exit code by
// category: configuration errors (bad arguments, missing backing store,
// plugin load failure, out-of-range addressing) get 1; transport setup
// errors (name in use, bind failure, mapping failure) get 2.
func classifyBootstrapError(err error) int {
	log.Printf("fatal: %v", err)

	switch {
	case errors.Is(err, store.ErrCannotDismountVolume):
		return exitCannotDismount
	case errors.Is(err, bootstrap.ErrPartitionOutOfRange):
		return exitConfig
	case errors.Is(err, vhd.ErrNotDynamic):
		return exitConfig
	case errors.Is(err, driver.ErrNotSupported):
		return exitConfig
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return exitConfig
	default:
		// Anything surfacing from transport construction (bind failure,
		// name already bound, mapping failure) is a transport/resource
		// error; everything else that reached this point already failed
		// before a transport was even selected, which in practice means a
		// configuration problem (bad image, bad plugin spec).
		if isTransportError(err) {
			return exitTransport
		}
		return exitConfig
	}
}

// isTransportError reports whether err's message indicates it originated
// from openTransport rather than backing-store/addressing resolution.
// bootstrap wraps transport-open failures with a recognizable prefix so
// this classification doesn't need a sentinel per transport kind.
func isTransportError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"open transport", "bind", "already bound", "mapping"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
