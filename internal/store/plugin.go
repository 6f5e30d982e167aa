// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

// Plugin is the capability contract a third-party I/O backend must
// satisfy: open/read/write/close plus a distinguished failure sentinel
// from Open. No specific ABI is mandated beyond these four operations;
// internal/plugin realizes it via Go's plugin.Plugin loader, but any
// implementation of this interface can be wired into a PluginStore
// directly (useful for tests).
type Plugin interface {
	// Open returns an opaque handle and the backing size it reports (0 if
	// unknown), or ok == false if the open failed.
	Open(name string, readOnly bool) (handle any, size int64, ok bool)
	Read(handle any, dst []byte, offset int64) (int, error)
	Write(handle any, src []byte, offset int64) (int, error)
	Close(handle any) error
}

// PluginStore backs a Store with a caller-supplied Plugin and the opaque
// handle its Open call returned.
type PluginStore struct {
	plugin Plugin
	handle any
	size   int64
}

// OpenPlugin dispatches to the plugin's Open entry point and wraps the
// returned handle in a Store.
func OpenPlugin(p Plugin, name string, readOnly bool) (*PluginStore, error) {
	h, size, ok := p.Open(name, readOnly)
	if !ok {
		return nil, ErrPluginOpenFailed
	}
	return &PluginStore{plugin: p, handle: h, size: size}, nil
}

func (s *PluginStore) PRead(dst []byte, offset int64) (int, error) {
	return s.plugin.Read(s.handle, dst, offset)
}

func (s *PluginStore) PWrite(src []byte, offset int64) (int, error) {
	return s.plugin.Write(s.handle, src, offset)
}

func (s *PluginStore) Close() error {
	return s.plugin.Close(s.handle)
}

func (s *PluginStore) Size() int64 {
	return s.size
}
