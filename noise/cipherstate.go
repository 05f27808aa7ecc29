package noise

import (
	"crypto/cipher"
	"math"
)

// CipherState pairs a keyed AEAD with the strictly-increasing nonce counter
// that Noise requires (spec §4.2, §4.5). It mirrors teacher's
// crypto/encryption.go CipherState, but delegates nonce byte-layout to the
// Cipher capability instead of hardcoding big-endian everywhere, since
// AES-GCM and ChaChaPoly disagree on nonce byte order.
type CipherState struct {
	cipher Cipher
	aead   cipher.AEAD
	key    [32]byte
	hasKey bool
	n      uint64
}

// InitializeKey installs a new key and resets the nonce counter to zero.
func (c *CipherState) InitializeKey(cap Cipher, key []byte) {
	c.cipher = cap
	copy(c.key[:], key)
	c.aead = cap.AEAD(c.key)
	c.hasKey = true
	c.n = 0
}

// HasKey reports whether a key has been installed.
func (c *CipherState) HasKey() bool { return c.hasKey }

// SetNonce overrides the nonce counter, for replaying out-of-order vectors
// against a fixed counter. Nothing else in this module calls it.
func (c *CipherState) SetNonce(n uint64) { c.n = n }

// Nonce returns the next nonce that will be used.
func (c *CipherState) Nonce() uint64 { return c.n }

// EncryptWithAd appends the encryption of plaintext (with associated data
// ad) to out and returns the extended slice. With no key installed it
// returns plaintext unmodified, per spec §4.2's "has_key() false" rule.
func (c *CipherState) EncryptWithAd(out, ad, plaintext []byte) ([]byte, error) {
	if !c.hasKey {
		return append(out, plaintext...), nil
	}
	if c.n == math.MaxUint64 {
		return nil, stateErr("nonce space exhausted")
	}
	nonce := c.cipher.EncodeNonce(c.n)
	result := c.aead.Seal(out, nonce, plaintext, ad)
	c.n++
	return result, nil
}

// DecryptWithAd is the inverse of EncryptWithAd.
func (c *CipherState) DecryptWithAd(out, ad, ciphertext []byte) ([]byte, error) {
	if !c.hasKey {
		return append(out, ciphertext...), nil
	}
	if c.n == math.MaxUint64 {
		return nil, stateErr("nonce space exhausted")
	}
	nonce := c.cipher.EncodeNonce(c.n)
	result, err := c.aead.Open(out, nonce, ciphertext, ad)
	if err != nil {
		return nil, decryptErr("authentication failed")
	}
	c.n++
	return result, nil
}

// EncryptAt and DecryptAt encrypt/decrypt at an explicit, caller-supplied
// nonce instead of the internal counter. A transport session built on top of
// a split CipherState (spec §6's "external collaborator") carries its
// nonce explicitly on the wire so packets can be reordered or dropped
// without losing synchronization; these accessors let that layer reuse the
// handshake's derived key without reimplementing AEAD framing.
func (c *CipherState) EncryptAt(nonce uint64, out, ad, plaintext []byte) ([]byte, error) {
	if !c.hasKey {
		return nil, stateErr("no key installed")
	}
	n := c.cipher.EncodeNonce(nonce)
	return c.aead.Seal(out, n, plaintext, ad), nil
}

func (c *CipherState) DecryptAt(nonce uint64, out, ad, ciphertext []byte) ([]byte, error) {
	if !c.hasKey {
		return nil, stateErr("no key installed")
	}
	n := c.cipher.EncodeNonce(nonce)
	result, err := c.aead.Open(out, n, ciphertext, ad)
	if err != nil {
		return nil, decryptErr("authentication failed")
	}
	return result, nil
}

// Rekey replaces the current key with REKEY(k) (spec §11.2's default
// construction): the first 32 bytes of encrypting 32 zero bytes under
// nonce 2^64-1 with empty associated data. This does not touch n.
func (c *CipherState) Rekey() {
	nonce := c.cipher.EncodeNonce(math.MaxUint64)
	zeros := make([]byte, 32)
	ciphertext := c.aead.Seal(nil, nonce, zeros, nil)
	var newKey [32]byte
	copy(newKey[:], ciphertext[:32])
	c.key = newKey
	c.aead = c.cipher.AEAD(c.key)
}
