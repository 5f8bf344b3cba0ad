/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package token

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// devKeySalt is a fixed, non-secret salt for the dev-mode key derivation.
// It exists only to domain-separate this derivation from any other HKDF
// use in the process; it carries no secrecy requirement of its own.
var devKeySalt = []byte("jitbroker-dev-signer")

// DeriveDevSigningKey derives a deterministic 32-byte HS256 signing key for
// a given signer identity from a single master key, so a dev deployment
// with one configured secret can still issue distinct keys per identity
// without storing them separately.
func DeriveDevSigningKey(masterKey []byte, identity string) []byte {
	reader := hkdf.New(sha256.New, masterKey, devKeySalt, []byte("jitbroker-signer|"+identity))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(reader, key); err != nil {
		// hkdf.New's Read only fails past its max output length, which a
		// single sha256.Size read never approaches.
		panic(err)
	}
	return key
}

// NewDevHMACOracle builds an HMACOracle whose secret is derived from
// masterKey and identity via DeriveDevSigningKey, for single-process
// deployments and tests with no separate signing service configured.
func NewDevHMACOracle(masterKey []byte, identity string) HMACOracle {
	return HMACOracle{Secret: DeriveDevSigningKey(masterKey, identity)}
}
