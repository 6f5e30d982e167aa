// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plugin loads a caller-supplied I/O backend from a shared object,
// using Go's plugin.Plugin symbol lookup rather than a C ABI. The loaded
// symbol must satisfy store.Plugin directly; no adapter struct or cgo shim
// sits between the .so and the backing-store layer.
package plugin

import (
	"errors"
	"fmt"
	"plugin"
	"strings"

	"github.com/blockdevio/devio-go/internal/store"
)

// ErrBadSpec is returned when a --dll argument does not parse as
// "path;symbol".
var ErrBadSpec = errors.New("plugin: spec must be \"path;symbol\"")

// ErrWrongType is returned when the loaded symbol does not implement
// store.Plugin.
var ErrWrongType = errors.New("plugin: exported symbol does not implement store.Plugin")

// ParseSpec splits a --dll=path;symbol argument into its path and symbol
// name, mirroring the original's "lib;entry" CLI convention.
func ParseSpec(spec string) (path, symbol string, err error) {
	i := strings.LastIndexByte(spec, ';')
	if i < 0 {
		return "", "", ErrBadSpec
	}
	path, symbol = spec[:i], spec[i+1:]
	if path == "" || symbol == "" {
		return "", "", ErrBadSpec
	}
	return path, symbol, nil
}

// Load opens the shared object at path and resolves symbol, which must be a
// package-level variable of a type implementing store.Plugin (not a
// constructor function -- Go plugin symbols are values, not factories).
func Load(path, symbol string) (store.Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: open %q: %w", path, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("plugin: lookup %q in %q: %w", symbol, path, err)
	}

	impl, ok := sym.(store.Plugin)
	if !ok {
		if ptr, ok2 := sym.(*store.Plugin); ok2 {
			impl, ok = *ptr, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrWrongType, symbol, path)
	}
	return impl, nil
}
