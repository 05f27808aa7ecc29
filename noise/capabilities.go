package noise

import (
	"crypto/cipher"
	"crypto/rand"
	"hash"
	"io"
)

// Random supplies entropy for ephemeral key generation. It exists as an
// interface, rather than a bare io.Reader, so tests can swap in the fixed
// byte sequences the official Noise test vectors require for "fixed
// ephemeral" scenarios.
type Random interface {
	Fill(out []byte) error
}

type systemRandom struct{}

func (systemRandom) Fill(out []byte) error {
	_, err := io.ReadFull(rand.Reader, out)
	return err
}

// DefaultRandom returns a Random backed by crypto/rand.
func DefaultRandom() Random { return systemRandom{} }

// DhKeypair is the public/private byte pair produced by a Dh capability.
type DhKeypair struct {
	Private []byte
	Public  []byte
}

// Dh is a Diffie-Hellman capability: an algorithm that generates keypairs
// and computes a shared secret from a local private key and a remote public
// key. Name and DHLen identify the algorithm for protocol-name assembly and
// key-slot sizing (spec §4.1).
type Dh interface {
	Name() string
	DHLen() int
	GenerateKeypair(rng Random) (DhKeypair, error)
	DH(localPriv, remotePub []byte) ([]byte, error)
}

// Hash is a hash-function capability, realized as a factory for a fresh
// stdlib hash.Hash so SymmetricState never has to reset shared state between
// calls. HashLen and BlockLen are derived from a fresh instance rather than
// hardcoded, so HKDF and the hash-is-wider-than-32-bytes truncation rule
// (spec §4.2) work for any digest the factory returns.
type Hash interface {
	Name() string
	New() hash.Hash
}

// Cipher is an AEAD capability. AEAD returns a keyed cipher.AEAD instance;
// EncodeNonce produces the wire-format nonce for a given counter, since
// AES-GCM and ChaChaPoly disagree on byte order (spec §4.2, §11).
type Cipher interface {
	Name() string
	AEAD(key [32]byte) cipher.AEAD
	EncodeNonce(n uint64) []byte
}
