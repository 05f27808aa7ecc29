// Package digest provides the Hash capability implementations used to build
// a noise.HandshakeState. SHA256 is stdlib (justified in SPEC_FULL.md §10);
// BLAKE2s is grounded on the Noise specification's own recommended pairing
// and on golang.org/x/crypto already being a teacher dependency.
package digest

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/blake2s"
)

// SHA256 implements noise.Hash over crypto/sha256.
type SHA256 struct{}

func (SHA256) Name() string   { return "SHA256" }
func (SHA256) New() hash.Hash { return sha256.New() }

// BLAKE2s implements noise.Hash over golang.org/x/crypto/blake2s, unkeyed.
type BLAKE2s struct{}

func (BLAKE2s) Name() string { return "BLAKE2s" }

func (BLAKE2s) New() hash.Hash {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic("digest: blake2s rejected a nil key: " + err.Error())
	}
	return h
}
