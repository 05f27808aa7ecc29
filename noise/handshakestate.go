package noise

import "strings"

// MaxMessageLen is the maximum size of a Noise handshake or transport
// message (spec §3, §4.6).
const MaxMessageLen = 65535

// MaxPSKs bounds how many "pskN" slots a pattern may reference.
const MaxPSKs = 10

// PSKLen is the required length of every pre-shared key.
const PSKLen = 32

// Config collects everything NewHandshakeState needs to build a
// HandshakeState: algorithm choices, role, and whatever key material the
// caller already has. Nil/empty fields mean "slot disabled" rather than
// using a sentinel value, matching spec §3's key-slot model.
type Config struct {
	Initiator bool
	Pattern   string
	Modifiers []string

	Dh     Dh
	Cipher Cipher
	Hash   Hash
	Random Random

	Prologue []byte

	StaticKeypair    *DhKeypair
	EphemeralKeypair *DhKeypair // only set for fixed-ephemeral test vectors
	PeerStatic       []byte
	PeerEphemeral    []byte

	PresharedKeys [MaxPSKs][]byte

	Patterns PatternLookup // nil selects BuiltinPatterns
}

// HandshakeState drives a single handshake to completion: it holds the
// symmetric state, local/remote key slots, and the remaining message
// patterns, and dispatches each token generically rather than special-casing
// individual patterns (spec §4.3-§4.6; control flow ported from
// original_source/src/handshakestate.rs, generalized from teacher's
// crypto/noise.go pattern-fixed dispatch).
type HandshakeState struct {
	dh     Dh
	cipher Cipher
	hash   Hash
	random Random

	ss SymmetricState

	s  dhSlot
	e  dhSlot
	rs Keyslot
	re Keyslot

	fixedEphemeral bool
	isPSK          bool
	psks           [MaxPSKs][]byte

	initiator       bool
	myTurn          bool
	messagePatterns [][]Token

	protocolName string

	cs1, cs2 *CipherState
}

func dhLen(d Dh, keypair *DhKeypair) int {
	if keypair != nil {
		return len(keypair.Public)
	}
	return d.DHLen()
}

// NewHandshakeState validates the configuration's prerequisites, assembles
// the protocol name, and mixes in any premessages, leaving the returned
// HandshakeState ready for the first WriteMessage/ReadMessage call.
func NewHandshakeState(cfg Config) (*HandshakeState, error) {
	lookup := cfg.Patterns
	if lookup == nil {
		lookup = BuiltinPatterns{}
	}
	tokens, err := lookup.Lookup(cfg.Pattern, cfg.Modifiers)
	if err != nil {
		return nil, err
	}

	if cfg.Dh == nil || cfg.Cipher == nil || cfg.Hash == nil {
		return nil, prereqErr("dh, cipher and hash capabilities are required")
	}
	random := cfg.Random
	if random == nil {
		random = DefaultRandom()
	}

	hs := &HandshakeState{
		dh:              cfg.Dh,
		cipher:          cfg.Cipher,
		hash:            cfg.Hash,
		random:          random,
		initiator:       cfg.Initiator,
		myTurn:          cfg.Initiator,
		messagePatterns: tokens.Messages,
		psks:            cfg.PresharedKeys,
	}
	for _, mod := range cfg.Modifiers {
		if strings.HasPrefix(mod, "psk") {
			hs.isPSK = true
			break
		}
	}

	if cfg.StaticKeypair != nil {
		if len(cfg.StaticKeypair.Public) != cfg.Dh.DHLen() || len(cfg.StaticKeypair.Private) == 0 {
			return nil, prereqErr("static keypair has wrong length for dh")
		}
		hs.s.Enable(*cfg.StaticKeypair)
	}
	if cfg.EphemeralKeypair != nil {
		if len(cfg.EphemeralKeypair.Public) != cfg.Dh.DHLen() {
			return nil, prereqErr("ephemeral keypair has wrong length for dh")
		}
		hs.e.Enable(*cfg.EphemeralKeypair)
		hs.fixedEphemeral = true
	}
	if cfg.PeerStatic != nil {
		if len(cfg.PeerStatic) != cfg.Dh.DHLen() {
			return nil, prereqErr("peer static key has wrong length for dh")
		}
		hs.rs.Enable(cfg.PeerStatic)
	}
	if cfg.PeerEphemeral != nil {
		if len(cfg.PeerEphemeral) != cfg.Dh.DHLen() {
			return nil, prereqErr("peer ephemeral key has wrong length for dh")
		}
		hs.re.Enable(cfg.PeerEphemeral)
	}

	name := assembleProtocolName(cfg.Pattern, cfg.Modifiers, cfg.Dh.Name(), cfg.Cipher.Name(), cfg.Hash.Name())
	hs.protocolName = name
	hs.ss.Initialize(cfg.Hash, cfg.Cipher, []byte(name))
	hs.ss.MixHash(cfg.Prologue)

	if err := hs.mixPremessage(tokens.PreMessageInitiator, cfg.Initiator); err != nil {
		return nil, err
	}
	if err := hs.mixPremessage(tokens.PreMessageResponder, !cfg.Initiator); err != nil {
		return nil, err
	}

	return hs, nil
}

func assembleProtocolName(pattern string, modifiers []string, dhName, cipherName, hashName string) string {
	var b strings.Builder
	b.WriteString("Noise_")
	b.WriteString(pattern)
	for _, m := range modifiers {
		b.WriteString(m)
	}
	b.WriteByte('_')
	b.WriteString(dhName)
	b.WriteByte('_')
	b.WriteString(cipherName)
	b.WriteByte('_')
	b.WriteString(hashName)
	return b.String()
}

// mixPremessage mixes a premessage's tokens into the transcript hash, from
// the perspective of whether the local party sent (mine=true) or received
// (mine=false) it, per spec §4.3.
func (hs *HandshakeState) mixPremessage(tokens []Token, mine bool) error {
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenE:
			if mine {
				if !hs.e.enabled {
					return prereqErr("premessage requires local ephemeral key")
				}
				hs.ss.MixHash(hs.e.keypair.Public)
			} else {
				if !hs.re.Enabled() {
					return prereqErr("premessage requires remote ephemeral key")
				}
				hs.ss.MixHash(hs.re.Bytes())
			}
		case TokenS:
			if mine {
				if !hs.s.enabled {
					return prereqErr("premessage requires local static key")
				}
				hs.ss.MixHash(hs.s.keypair.Public)
			} else {
				if !hs.rs.Enabled() {
					return prereqErr("premessage requires remote static key")
				}
				hs.ss.MixHash(hs.rs.Bytes())
			}
		default:
			return patternErr("premessages may only contain e/s tokens")
		}
	}
	return nil
}

// mixDH performs dh(local, remote) and folds the result into the
// SymmetricState via MixKey. localS/remoteS select static vs. ephemeral on
// each side.
func (hs *HandshakeState) mixDH(localS, remoteS bool) error {
	if localS && !hs.s.enabled {
		return stateErr("local static key required for dh")
	}
	if !localS && !hs.e.enabled {
		return stateErr("local ephemeral key required for dh")
	}
	if remoteS && !hs.rs.Enabled() {
		return stateErr("remote static key required for dh")
	}
	if !remoteS && !hs.re.Enabled() {
		return stateErr("remote ephemeral key required for dh")
	}

	var localPriv []byte
	if localS {
		localPriv = hs.s.keypair.Private
	} else {
		localPriv = hs.e.keypair.Private
	}
	var remotePub []byte
	if remoteS {
		remotePub = hs.rs.Bytes()
	} else {
		remotePub = hs.re.Bytes()
	}

	shared, err := hs.dh.DH(localPriv, remotePub)
	if err != nil {
		return dhErr(err.Error())
	}
	hs.ss.MixKey(shared)
	return nil
}

// dispatchDH applies the EE/ES/SE/SS token to the running symmetric state.
// ES/SE resolve differently depending on whether the local party is the
// initiator or the responder (spec §4.4): "es" always means dh(e, rs) on
// the initiator's side and dh(s, re) on the responder's side, regardless of
// whether this call is a write or a read.
func (hs *HandshakeState) dispatchDH(kind TokenKind) error {
	switch kind {
	case TokenEE:
		return hs.mixDH(false, false)
	case TokenES:
		if hs.initiator {
			return hs.mixDH(false, true)
		}
		return hs.mixDH(true, false)
	case TokenSE:
		if hs.initiator {
			return hs.mixDH(true, false)
		}
		return hs.mixDH(false, true)
	case TokenSS:
		return hs.mixDH(true, true)
	}
	return stateErr("not a dh token")
}

func (hs *HandshakeState) psk(n int) ([]byte, error) {
	if n < 0 || n >= MaxPSKs || hs.psks[n] == nil {
		return nil, stateErr("missing preshared key")
	}
	if len(hs.psks[n]) != PSKLen {
		return nil, prereqErr("preshared key must be 32 bytes")
	}
	return hs.psks[n], nil
}

// WriteMessage writes the next handshake message into message, encrypting
// payload as its body, and returns the number of bytes written. len(message)
// must be large enough for the whole message; an
// undersized buffer fails with ErrInput rather than growing, so callers can
// reuse a fixed-size buffer across the whole handshake.
func (hs *HandshakeState) WriteMessage(message, payload []byte) (int, error) {
	if !hs.myTurn {
		return 0, stateErr("not our turn to write")
	}
	if len(hs.messagePatterns) == 0 {
		return 0, stateErr("no handshake messages remain")
	}
	tokens := hs.messagePatterns[0]
	hs.messagePatterns = hs.messagePatterns[1:]
	last := len(hs.messagePatterns) == 0

	byteIndex := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenE:
			if !hs.fixedEphemeral {
				kp, err := hs.dh.GenerateKeypair(hs.random)
				if err != nil {
					return 0, dhErr(err.Error())
				}
				hs.e.Enable(kp)
			}
			pub := hs.e.keypair.Public
			if byteIndex+len(pub) > len(message) {
				return 0, inputErr("message buffer too small for e")
			}
			copy(message[byteIndex:], pub)
			byteIndex += len(pub)
			hs.ss.MixHash(pub)
			if hs.isPSK {
				hs.ss.MixKey(pub)
			}
		case TokenS:
			if !hs.s.enabled {
				return 0, stateErr("local static key required")
			}
			pub := hs.s.keypair.Public
			need := len(pub)
			if hs.ss.HasKey() {
				need += 16
			}
			if byteIndex+need > len(message) {
				return 0, inputErr("message buffer too small for s")
			}
			result, err := hs.ss.EncryptAndMixHash(message[byteIndex:byteIndex], pub)
			if err != nil {
				return 0, err
			}
			byteIndex += len(result)
		case TokenPSK:
			psk, err := hs.psk(tok.N)
			if err != nil {
				return 0, err
			}
			hs.ss.MixKeyAndHash(psk)
		default:
			if err := hs.dispatchDH(tok.Kind); err != nil {
				return 0, err
			}
		}
	}

	need := len(payload)
	if hs.ss.HasKey() {
		need += 16
	}
	if byteIndex+need > len(message) {
		return 0, inputErr("message buffer too small for payload")
	}
	result, err := hs.ss.EncryptAndMixHash(message[byteIndex:byteIndex], payload)
	if err != nil {
		return 0, err
	}
	byteIndex += len(result)
	if byteIndex > MaxMessageLen {
		return 0, inputErr("message exceeds maximum length")
	}

	hs.myTurn = false
	if last {
		hs.cs1, hs.cs2 = hs.ss.Split()
	}
	return byteIndex, nil
}

// ReadMessage parses a handshake message previously produced by
// WriteMessage, writing the decrypted payload into payload[:0]'s backing
// array (reusing its capacity the same way EncryptAndMixHash does) and
// returning the number of plaintext bytes produced.
func (hs *HandshakeState) ReadMessage(message, payload []byte) (int, error) {
	if hs.myTurn {
		return 0, stateErr("not our turn to read")
	}
	if len(message) > MaxMessageLen {
		return 0, inputErr("message exceeds maximum length")
	}
	if len(hs.messagePatterns) == 0 {
		return 0, stateErr("no handshake messages remain")
	}
	tokens := hs.messagePatterns[0]
	hs.messagePatterns = hs.messagePatterns[1:]
	last := len(hs.messagePatterns) == 0

	cursor := message
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenE:
			n := hs.dh.DHLen()
			if len(cursor) < n {
				return 0, inputErr("message too short for e")
			}
			hs.re.Enable(cursor[:n])
			cursor = cursor[n:]
			hs.ss.MixHash(hs.re.Bytes())
			if hs.isPSK {
				hs.ss.MixKey(hs.re.Bytes())
			}
		case TokenS:
			n := hs.dh.DHLen()
			if hs.ss.HasKey() {
				n += 16
			}
			if len(cursor) < n {
				return 0, inputErr("message too short for s")
			}
			pub, err := hs.ss.DecryptAndMixHash(nil, cursor[:n])
			if err != nil {
				return 0, err
			}
			cursor = cursor[n:]
			hs.rs.Enable(pub)
		case TokenPSK:
			psk, err := hs.psk(tok.N)
			if err != nil {
				return 0, err
			}
			hs.ss.MixKeyAndHash(psk)
		default:
			if err := hs.dispatchDH(tok.Kind); err != nil {
				return 0, err
			}
		}
	}

	plaintext, err := hs.ss.DecryptAndMixHash(payload[:0], cursor)
	if err != nil {
		return 0, err
	}

	hs.myTurn = true
	if last {
		hs.cs1, hs.cs2 = hs.ss.Split()
	}
	return len(plaintext), nil
}

// IsInitiator reports whether this HandshakeState is playing the initiator
// role.
func (hs *HandshakeState) IsInitiator() bool { return hs.initiator }

// IsFinished reports whether every handshake message has been processed.
func (hs *HandshakeState) IsFinished() bool { return len(hs.messagePatterns) == 0 }

// ProtocolName returns the assembled "Noise_..." name used to initialize
// this handshake.
func (hs *HandshakeState) ProtocolName() string { return hs.protocolName }

// Finish returns the pair of transport CipherStates produced by Split, once
// the handshake has completed. c1 encrypts initiator-to-responder traffic;
// c2 encrypts responder-to-initiator traffic (spec §4.6).
func (hs *HandshakeState) Finish() (c1, c2 *CipherState, protocolName string, err error) {
	if !hs.IsFinished() || hs.cs1 == nil {
		return nil, nil, "", stateErr("handshake not finished")
	}
	return hs.cs1, hs.cs2, hs.protocolName, nil
}
