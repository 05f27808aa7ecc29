// Package dh provides the Dh capability implementation used to build a
// noise.HandshakeState. Grounded on teacher's crypto/keyexchange.go
// (GeneratePrivateKey/derivePublicKey/deriveSharedSecret, since deleted and
// superseded by this package) and mixmasala-noise/box/box.go's
// noise255.GenerateKey, both of which clamp the private scalar the same way
// curve25519.X25519 already does internally.
package dh

import (
	"golang.org/x/crypto/curve25519"

	"github.com/expenses/snow/noise"
)

// X25519 implements noise.Dh over Curve25519.
type X25519 struct{}

func (X25519) Name() string { return "25519" }

func (X25519) DHLen() int { return 32 }

func (X25519) GenerateKeypair(rng noise.Random) (noise.DhKeypair, error) {
	var priv [32]byte
	if err := rng.Fill(priv[:]); err != nil {
		return noise.DhKeypair{}, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return noise.DhKeypair{}, err
	}
	return noise.DhKeypair{Private: priv[:], Public: pub}, nil
}

func (X25519) DH(localPriv, remotePub []byte) ([]byte, error) {
	return curve25519.X25519(localPriv, remotePub)
}
