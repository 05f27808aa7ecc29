package noise

import "crypto/hmac"

// SymmetricState carries the chaining key and running transcript hash that
// accumulate across a handshake, plus the CipherState they eventually seed
// (spec §4.2). The HKDF plumbing is grounded on teacher's crypto/noise.go
// (mixKey/mixKeyAndHash/encryptAndHash), generalized here from teacher's
// pattern-fixed calls into the symmetric-state primitive the data-driven
// HandshakeState drives directly.
type SymmetricState struct {
	hash   Hash
	cipher Cipher
	ck     []byte
	h      []byte
	cs     CipherState
}

// Initialize sets h to protocolName (hashed down if it's longer than
// HASHLEN) and ck to the same value, per spec §4.2.
func (s *SymmetricState) Initialize(h Hash, c Cipher, protocolName []byte) {
	s.hash = h
	s.cipher = c
	hashLen := h.New().Size()
	if len(protocolName) <= hashLen {
		s.h = make([]byte, hashLen)
		copy(s.h, protocolName)
	} else {
		digest := h.New()
		digest.Write(protocolName)
		s.h = digest.Sum(nil)
	}
	s.ck = append([]byte(nil), s.h...)
	s.cs = CipherState{}
}

func hmacHash(h Hash, key, data []byte) []byte {
	mac := hmac.New(h.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// hkdf2 implements Noise's HKDF with two outputs (spec §4.3).
func hkdf2(h Hash, chainingKey, inputKeyMaterial []byte) (out1, out2 []byte) {
	tempKey := hmacHash(h, chainingKey, inputKeyMaterial)
	out1 = hmacHash(h, tempKey, []byte{0x01})
	out2 = hmacHash(h, tempKey, append(append([]byte{}, out1...), 0x02))
	return out1, out2
}

// hkdf3 implements Noise's HKDF with three outputs.
func hkdf3(h Hash, chainingKey, inputKeyMaterial []byte) (out1, out2, out3 []byte) {
	out1, out2 = hkdf2(h, chainingKey, inputKeyMaterial)
	out3 = hmacHash(h, hmacHash(h, chainingKey, inputKeyMaterial), append(append([]byte{}, out2...), 0x03))
	return out1, out2, out3
}

func truncate32(b []byte) []byte {
	if len(b) > 32 {
		return b[:32]
	}
	return b
}

// MixKey updates ck and installs a fresh CipherState key (spec §4.2).
func (s *SymmetricState) MixKey(inputKeyMaterial []byte) {
	ck, tempK := hkdf2(s.hash, s.ck, inputKeyMaterial)
	s.ck = ck
	s.cs.InitializeKey(s.cipher, truncate32(tempK))
}

// MixHash folds data into the running transcript hash.
func (s *SymmetricState) MixHash(data []byte) {
	digest := s.hash.New()
	digest.Write(s.h)
	digest.Write(data)
	s.h = digest.Sum(nil)
}

// MixKeyAndHash is MixKey plus a hash mix of the intermediate HKDF output,
// used for PSK tokens (spec §4.2).
func (s *SymmetricState) MixKeyAndHash(inputKeyMaterial []byte) {
	ck, tempH, tempK := hkdf3(s.hash, s.ck, inputKeyMaterial)
	s.ck = ck
	s.MixHash(tempH)
	s.cs.InitializeKey(s.cipher, truncate32(tempK))
}

// HasKey reports whether the underlying CipherState has a key installed.
func (s *SymmetricState) HasKey() bool { return s.cs.HasKey() }

// EncryptAndMixHash encrypts plaintext (appending to out) and mixes the
// ciphertext into h.
func (s *SymmetricState) EncryptAndMixHash(out, plaintext []byte) ([]byte, error) {
	start := len(out)
	result, err := s.cs.EncryptWithAd(out, s.h, plaintext)
	if err != nil {
		return nil, err
	}
	s.MixHash(result[start:])
	return result, nil
}

// DecryptAndMixHash is the inverse of EncryptAndMixHash. Critically it mixes
// the ciphertext (data), not the recovered plaintext.
func (s *SymmetricState) DecryptAndMixHash(out, data []byte) ([]byte, error) {
	result, err := s.cs.DecryptWithAd(out, s.h, data)
	if err != nil {
		return nil, err
	}
	s.MixHash(data)
	return result, nil
}

// Split derives the pair of transport CipherStates from ck (spec §4.2).
func (s *SymmetricState) Split() (c1, c2 *CipherState) {
	k1, k2 := hkdf2(s.hash, s.ck, nil)
	c1 = &CipherState{}
	c1.InitializeKey(s.cipher, truncate32(k1))
	c2 = &CipherState{}
	c2.InitializeKey(s.cipher, truncate32(k2))
	return c1, c2
}
