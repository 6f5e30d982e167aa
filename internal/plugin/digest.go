// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	digestIterations = 4096
	digestKeyLen     = 32
)

// digestSalt is fixed, not random: VerifyDigest must derive the same key
// an operator computed out-of-band for the same plugin bytes.
var digestSalt = []byte("devio-go-plugin-digest")

// HashPluginFile derives a PBKDF2-SHA256 digest of a plugin file's bytes,
// the same pbkdf2.Key(secret, salt, iter, keyLen, hashFunc) shape used for
// password hashing elsewhere in this lineage -- here the "secret" is the
// plugin's bytes rather than a user-entered password.
func HashPluginFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %q for digest: %w", path, err)
	}
	return pbkdf2.Key(data, digestSalt, digestIterations, digestKeyLen, sha256.New), nil
}

// VerifyDigest reports an error unless path's PBKDF2 digest matches the
// hex-encoded expectedHex, for --dll-verify load-integrity checking.
func VerifyDigest(path, expectedHex string) error {
	got, err := HashPluginFile(path)
	if err != nil {
		return err
	}
	if hex.EncodeToString(got) != expectedHex {
		return fmt.Errorf("plugin: %q digest does not match --dll-verify", path)
	}
	return nil
}
