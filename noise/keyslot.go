package noise

// MaxDHLen bounds the public-key size any Dh implementation in this package
// may produce. 56 covers Curve448; X25519 keys fit comfortably inside it.
const MaxDHLen = 56

// Keyslot holds a possibly-absent fixed-size public key. It replaces a
// nullable byte slice with an explicit enabled flag and a fixed backing
// array, so a HandshakeState never allocates or nil-checks its way through
// rs/re bookkeeping (spec §3, "key slot").
type Keyslot struct {
	enabled bool
	length  int
	buf     [MaxDHLen]byte
}

// Enable copies data into the slot and marks it present.
func (k *Keyslot) Enable(data []byte) {
	k.length = copy(k.buf[:], data)
	k.enabled = true
}

// Enabled reports whether the slot currently holds a key.
func (k *Keyslot) Enabled() bool { return k.enabled }

// Bytes returns the stored key, or nil if the slot is empty.
func (k *Keyslot) Bytes() []byte {
	if !k.enabled {
		return nil
	}
	return k.buf[:k.length]
}

// dhSlot holds a possibly-absent local keypair (s or e).
type dhSlot struct {
	keypair DhKeypair
	enabled bool
}

func (d *dhSlot) Enable(kp DhKeypair) {
	d.keypair = kp
	d.enabled = true
}
