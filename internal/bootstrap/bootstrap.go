// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/term"

	"github.com/blockdevio/devio-go/internal/logical"
	"github.com/blockdevio/devio-go/internal/protocol"
)

// Result is everything Run needs after bootstrap succeeds: the assembled
// protocol session and a Close that releases the backing store and
// transport in the right order.
type Result struct {
	Session *protocol.Session
	Close   func() error
}

// Open resolves the backing store, addressing, and transport from cli and
// assembles a ready-to-run protocol.Session.
func Open(cli *CLI) (*Result, error) {
	bs, err := ResolveBackingStore(cli)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: resolve backing store: %w", err)
	}

	alignment, err := resolveAlignment(cli)
	if err != nil {
		bs.Store.Close()
		return nil, err
	}
	bufSize, err := ResolveBufferSize(cli)
	if err != nil {
		bs.Store.Close()
		return nil, err
	}

	ot, err := openTransport(cli.Comm, cli.Drv, bufSize)
	if err != nil {
		bs.Store.Close()
		return nil, fmt.Errorf("bootstrap: open transport %q: %w", cli.Comm, err)
	}

	dev := logical.New(bs.Store, bs.VHD, bs.ImageOffset, bs.FileSize)

	info := protocol.Info{
		FileSize:     uint64(bs.FileSize),
		ReqAlignment: alignment,
	}
	if cli.ReadOnly {
		info.Flags |= protocol.FlagReadOnly
	}

	if cli.Verbose {
		logBootConfig(cli, bs, alignment, bufSize)
	}

	sess := protocol.NewSession(ot.t, dev, info, ot.buf, ot.rawBuf, ot.canGrow)

	closeFn := func() error {
		tErr := ot.t.Close()
		sErr := bs.Store.Close()
		if tErr != nil {
			return tErr
		}
		return sErr
	}

	return &Result{Session: sess, Close: closeFn}, nil
}

// bootConfig is the -v verbose dump of what bootstrap resolved, named so
// spew's field labels read naturally alongside a struct built for logging
// rather than the package's internal BackingStore type.
type bootConfig struct {
	Image     string
	Comm      string
	VHD       bool
	Offset    int64
	Size      int64
	Alignment uint64
	Buffer    int
}

// logBootConfig emits the -v startup banner: a compact one-line summary
// piped to a non-interactive log consumer, or a spew.Sdump of the full
// resolved configuration when stdout is a terminal -- log formatting
// (never protocol bytes) depends on whether a human is watching.
func logBootConfig(cli *CLI, bs *BackingStore, alignment uint64, bufSize int) {
	cfg := bootConfig{
		Image:     cli.Image,
		Comm:      cli.Comm,
		VHD:       bs.VHD != nil,
		Offset:    bs.ImageOffset,
		Size:      bs.FileSize,
		Alignment: alignment,
		Buffer:    bufSize,
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Printf("devio-go resolved configuration:\n%s", spew.Sdump(cfg))
		return
	}
	log.Printf("devio-go: image=%q comm=%q vhd=%t offset=%d size=%d alignment=%d buffer=%d",
		cfg.Image, cfg.Comm, cfg.VHD, cfg.Offset, cfg.Size, cfg.Alignment, cfg.Buffer)
}
