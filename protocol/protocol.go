// Package protocol resolves a Noise protocol name string
// ("Noise_XX_25519_ChaChaPoly_BLAKE2s") into a ready-to-use
// noise.HandshakeState. It is the thin "NoiseBuilder" layer original_source's
// handshakestate.rs doc comments describe as living above HandshakeState
// itself, generalized from teacher's crypto/noise.go PerformNoiseHandshake
// dispatch (which hardcoded exactly two patterns) into a full name parser.
package protocol

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/expenses/snow/noise"
	"github.com/expenses/snow/noise/aead"
	"github.com/expenses/snow/noise/dh"
	"github.com/expenses/snow/noise/digest"
)

// Name is a parsed "Noise_<pattern><mods>_<dh>_<cipher>_<hash>" string.
type Name struct {
	Pattern    string
	Modifiers  []string
	DhName     string
	CipherName string
	HashName   string
}

// Parse splits a protocol name into its components without resolving them
// to concrete capabilities. Use New to go straight to a HandshakeState.
func Parse(name string) (Name, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 5 || parts[0] != "Noise" {
		return Name{}, errors.Errorf("protocol: malformed name %q", name)
	}
	base, mods := noise.ParsePatternName(parts[1])
	return Name{
		Pattern:    base,
		Modifiers:  mods,
		DhName:     parts[2],
		CipherName: parts[3],
		HashName:   parts[4],
	}, nil
}

func (n Name) String() string {
	var b strings.Builder
	b.WriteString("Noise_")
	b.WriteString(n.Pattern)
	for _, m := range n.Modifiers {
		b.WriteString(m)
	}
	b.WriteByte('_')
	b.WriteString(n.DhName)
	b.WriteByte('_')
	b.WriteString(n.CipherName)
	b.WriteByte('_')
	b.WriteString(n.HashName)
	return b.String()
}

func resolveDh(name string) (noise.Dh, error) {
	switch name {
	case "25519":
		return dh.X25519{}, nil
	default:
		return nil, errors.Errorf("protocol: unknown dh function %q", name)
	}
}

func resolveCipher(name string) (noise.Cipher, error) {
	switch name {
	case "ChaChaPoly":
		return aead.ChaChaPoly{}, nil
	case "AESGCM":
		return aead.AESGCM{}, nil
	default:
		return nil, errors.Errorf("protocol: unknown cipher %q", name)
	}
}

func resolveHash(name string) (noise.Hash, error) {
	switch name {
	case "SHA256":
		return digest.SHA256{}, nil
	case "BLAKE2s":
		return digest.BLAKE2s{}, nil
	default:
		return nil, errors.Errorf("protocol: unknown hash %q", name)
	}
}

// Options carries the caller-supplied key material and role that New
// layers on top of the parsed name to build a noise.Config.
type Options struct {
	Initiator        bool
	Prologue         []byte
	StaticKeypair    *noise.DhKeypair
	EphemeralKeypair *noise.DhKeypair
	PeerStatic       []byte
	PeerEphemeral    []byte
	PresharedKeys    [noise.MaxPSKs][]byte
	Random           noise.Random
}

// New parses protocolName, resolves its algorithm components, and builds a
// noise.HandshakeState from opts.
func New(protocolName string, opts Options) (*noise.HandshakeState, error) {
	name, err := Parse(protocolName)
	if err != nil {
		return nil, err
	}

	dhFn, err := resolveDh(name.DhName)
	if err != nil {
		return nil, err
	}
	cipherFn, err := resolveCipher(name.CipherName)
	if err != nil {
		return nil, err
	}
	hashFn, err := resolveHash(name.HashName)
	if err != nil {
		return nil, err
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		Initiator:        opts.Initiator,
		Pattern:          name.Pattern,
		Modifiers:        name.Modifiers,
		Dh:               dhFn,
		Cipher:           cipherFn,
		Hash:             hashFn,
		Random:           opts.Random,
		Prologue:         opts.Prologue,
		StaticKeypair:    opts.StaticKeypair,
		EphemeralKeypair: opts.EphemeralKeypair,
		PeerStatic:       opts.PeerStatic,
		PeerEphemeral:    opts.PeerEphemeral,
		PresharedKeys:    opts.PresharedKeys,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "protocol: building %q", protocolName)
	}
	return hs, nil
}
