package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/expenses/snow/noise"
	"github.com/expenses/snow/noise/aead"
	"github.com/expenses/snow/noise/dh"
	"github.com/expenses/snow/noise/digest"
	"github.com/expenses/snow/session"
)

func splitPair(t *testing.T) (initSend, initRecv, respSend, respRecv *noise.CipherState) {
	t.Helper()
	cfg := noise.Config{Dh: dh.X25519{}, Cipher: aead.ChaChaPoly{}, Hash: digest.BLAKE2s{}, Pattern: "NN"}
	cfgI := cfg
	cfgI.Initiator = true
	cfgR := cfg

	hsI, err := noise.NewHandshakeState(cfgI)
	require.NoError(t, err)
	hsR, err := noise.NewHandshakeState(cfgR)
	require.NoError(t, err)

	buf := make([]byte, noise.MaxMessageLen)
	out := make([]byte, 0, noise.MaxMessageLen)

	n, err := hsI.WriteMessage(buf, nil)
	require.NoError(t, err)
	_, err = hsR.ReadMessage(buf[:n], out[:0])
	require.NoError(t, err)

	n, err = hsR.WriteMessage(buf, nil)
	require.NoError(t, err)
	_, err = hsI.ReadMessage(buf[:n], out[:0])
	require.NoError(t, err)

	ci1, ci2, _, err := hsI.Finish()
	require.NoError(t, err)
	cr1, cr2, _, err := hsR.Finish()
	require.NoError(t, err)
	return ci1, ci2, cr2, cr1
}

func TestSessionRoundTrip(t *testing.T) {
	iSend, iRecv, rSend, rRecv := splitPair(t)
	initiator := session.New(iSend, iRecv, session.DefaultRekeyPolicy())
	responder := session.New(rSend, rRecv, session.DefaultRekeyPolicy())

	nonce, ct, err := initiator.Seal(nil, []byte("hello"))
	require.NoError(t, err)
	pt, err := responder.Open(nonce, nil, ct)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
}

func TestSessionReplayRejected(t *testing.T) {
	iSend, iRecv, rSend, rRecv := splitPair(t)
	initiator := session.New(iSend, iRecv, session.DefaultRekeyPolicy())
	responder := session.New(rSend, rRecv, session.DefaultRekeyPolicy())

	nonce, ct, err := initiator.Seal(nil, []byte("once"))
	require.NoError(t, err)
	_, err = responder.Open(nonce, nil, ct)
	require.NoError(t, err)

	_, err = responder.Open(nonce, nil, ct)
	require.ErrorIs(t, err, session.ErrReplay)
}

func TestSessionOutOfOrderWithinWindowAccepted(t *testing.T) {
	iSend, iRecv, rSend, rRecv := splitPair(t)
	initiator := session.New(iSend, iRecv, session.DefaultRekeyPolicy())
	responder := session.New(rSend, rRecv, session.DefaultRekeyPolicy())

	var nonces []uint64
	var cts [][]byte
	for i := 0; i < 3; i++ {
		n, ct, err := initiator.Seal(nil, []byte("msg"))
		require.NoError(t, err)
		nonces = append(nonces, n)
		cts = append(cts, ct)
	}

	// Deliver out of order: 2, 0, 1.
	_, err := responder.Open(nonces[2], nil, cts[2])
	require.NoError(t, err)
	_, err = responder.Open(nonces[0], nil, cts[0])
	require.NoError(t, err)
	_, err = responder.Open(nonces[1], nil, cts[1])
	require.NoError(t, err)
}

func TestSessionRekeyChangesKey(t *testing.T) {
	iSend, iRecv, rSend, rRecv := splitPair(t)
	initiator := session.New(iSend, iRecv, session.DefaultRekeyPolicy())
	responder := session.New(rSend, rRecv, session.DefaultRekeyPolicy())

	_, before, err := initiator.Seal(nil, []byte("post-rekey"))
	require.NoError(t, err)

	initiator.Rekey()
	responder.Rekey()

	nonce, ct, err := initiator.Seal(nil, []byte("post-rekey"))
	require.NoError(t, err)
	require.NotEqual(t, before, ct)
	pt, err := responder.Open(nonce, nil, ct)
	require.NoError(t, err)
	require.Equal(t, "post-rekey", string(pt))
}

func TestReplayWindowDirect(t *testing.T) {
	w := session.NewReplayWindow(8)
	require.NoError(t, w.Check(100))
	w.Accept(100)
	require.ErrorIs(t, w.Check(100), session.ErrReplay)
	require.NoError(t, w.Check(99))
	w.Accept(99)
	require.ErrorIs(t, w.Check(99), session.ErrReplay)
	// Far outside the window on the low side.
	require.ErrorIs(t, w.Check(50), session.ErrReplay)
}
