// Package session wraps a completed noise.HandshakeState's split
// CipherStates into a long-lived transport session: explicit per-message
// nonces, a replay window, and policy-driven rekeying. None of this is part
// of core Noise (spec.md's Non-goals exclude the transport-phase session
// itself), but spec.md names it as the external collaborator that consumes
// HandshakeState.Finish's output, so it gets a home here, adapted from
// teacher's crypto/pfs.go (PFSManager) and crypto/antireplay.go (AntiReplay).
package session

import (
	"sync"
	"time"

	"github.com/expenses/snow/noise"
)

// RekeyPolicy mirrors teacher's PFSConfig: limits on how long a single
// transport key may be used before Rekey is called on it.
type RekeyPolicy struct {
	Interval      time.Duration
	AfterMessages uint64
	AfterBytes    uint64
}

// DefaultRekeyPolicy matches teacher's DefaultPFSConfig, minus the
// MaxEpochAge hard cap (redundant with Interval once there is no separate
// renegotiation round-trip to budget for).
func DefaultRekeyPolicy() RekeyPolicy {
	return RekeyPolicy{
		Interval:      5 * time.Minute,
		AfterMessages: 100000,
		AfterBytes:    1 << 30,
	}
}

// Session is a long-lived pair of transport CipherStates produced by
// HandshakeState.Finish, plus the bookkeeping needed to use them safely
// over an unreliable, reordering transport: explicit nonces, replay
// detection, and policy-driven rekeying (adapted from teacher's
// PFSManager, generalized from its raw-X25519 rekey round-trip to simply
// calling noise.CipherState.Rekey on both sides in lockstep).
type Session struct {
	mu sync.Mutex

	send *noise.CipherState
	recv *noise.CipherState

	sendNonce uint64
	window    ReplayWindow

	policy RekeyPolicy

	messagesSent, messagesReceived uint64
	bytesSent, bytesReceived       uint64
	lastRekey                      time.Time
}

// New wraps a pair of CipherStates produced by HandshakeState.Finish. send
// is this party's write-direction cipher, recv the read-direction one —
// callers pass (cs1, cs2) if they are the initiator and (cs2, cs1) if they
// are the responder, per spec §4.6.
func New(send, recv *noise.CipherState, policy RekeyPolicy) *Session {
	return &Session{
		send:      send,
		recv:      recv,
		window:    NewReplayWindow(64),
		policy:    policy,
		lastRekey: time.Now(),
	}
}

// Seal encrypts plaintext under the next send nonce, which it returns
// alongside the ciphertext so the caller can carry it on the wire.
func (s *Session) Seal(ad, plaintext []byte) (nonce uint64, ciphertext []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce = s.sendNonce
	ciphertext, err = s.send.EncryptAt(nonce, nil, ad, plaintext)
	if err != nil {
		return 0, nil, err
	}
	s.sendNonce++
	s.messagesSent++
	s.bytesSent += uint64(len(plaintext))
	return nonce, ciphertext, nil
}

// Open validates nonce against the replay window, then decrypts.
func (s *Session) Open(nonce uint64, ad, ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.window.Check(nonce); err != nil {
		return nil, err
	}
	plaintext, err := s.recv.DecryptAt(nonce, nil, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	s.window.Accept(nonce)
	s.messagesReceived++
	s.bytesReceived += uint64(len(plaintext))
	return plaintext, nil
}

// NeedsRekey reports whether policy thresholds have been crossed, mirroring
// teacher's PFSManager.NeedsRekey.
func (s *Session) NeedsRekey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy.Interval > 0 && time.Since(s.lastRekey) >= s.policy.Interval {
		return true
	}
	if s.policy.AfterMessages > 0 && s.messagesSent+s.messagesReceived >= s.policy.AfterMessages {
		return true
	}
	if s.policy.AfterBytes > 0 && s.bytesSent+s.bytesReceived >= s.policy.AfterBytes {
		return true
	}
	return false
}

// Rekey calls noise.CipherState.Rekey on both directions and resets
// counters and the replay window. Both parties must call Rekey at the same
// logical point in the stream (e.g. after agreeing out of band, or after a
// fixed message count) since Noise's Rekey is deterministic given the prior
// key, not renegotiated.
func (s *Session) Rekey() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.send.Rekey()
	s.recv.Rekey()
	s.sendNonce = 0
	s.window = NewReplayWindow(s.window.size)
	s.messagesSent, s.messagesReceived = 0, 0
	s.bytesSent, s.bytesReceived = 0, 0
	s.lastRekey = time.Now()
}

// Stats reports traffic counters, mirroring teacher's PFSManager.Stats.
type Stats struct {
	MessagesSent, MessagesReceived uint64
	BytesSent, BytesReceived       uint64
	LastRekey                      time.Time
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		MessagesSent:     s.messagesSent,
		MessagesReceived: s.messagesReceived,
		BytesSent:        s.bytesSent,
		BytesReceived:    s.bytesReceived,
		LastRekey:        s.lastRekey,
	}
}
