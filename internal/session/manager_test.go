package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"confy/internal/crypto"
	"confy/internal/domain"
	"confy/internal/log"
)

func testBackend(t *testing.T) *log.Backend {
	t.Helper()
	b, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	return b
}

// pipe is a loopback transport: everything sent is recorded and forwarded,
// in order, to the manager wired with deliverTo.
type pipe struct {
	mu     sync.Mutex
	dials  []domain.PeerID
	sent   []domain.Envelope
	closes int
	out    chan domain.Envelope
}

func newPipe() *pipe {
	return &pipe{out: make(chan domain.Envelope, 64)}
}

func (p *pipe) Dial(peer domain.PeerID) error {
	p.mu.Lock()
	p.dials = append(p.dials, peer)
	p.mu.Unlock()
	return nil
}

func (p *pipe) SendEnvelope(env domain.Envelope) error {
	p.mu.Lock()
	p.sent = append(p.sent, env)
	p.mu.Unlock()
	p.out <- env
	return nil
}

func (p *pipe) RequestClose() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
	return nil
}

func (p *pipe) deliverTo(m *Manager) {
	go func() {
		for env := range p.out {
			m.OnEnvelope(env)
		}
	}()
}

func (p *pipe) countByType(tp domain.EnvelopeType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, env := range p.sent {
		if env.Type == tp {
			n++
		}
	}
	return n
}

func (p *pipe) envelope(i int) domain.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[i]
}

var _ domain.Transport = (*pipe)(nil)

func testConfig() Config {
	return Config{IdentityBits: testKeyBits}
}

// managerPair wires two managers back-to-back and runs the attach sequence:
// alice is the initiator, bob the responder.
func managerPair(t *testing.T) (alice, bob *Manager, alicePipe, bobPipe *pipe) {
	t.Helper()
	backend := testBackend(t)
	alicePipe, bobPipe = newPipe(), newPipe()
	alice = NewManager(backend, alicePipe, testConfig())
	bob = NewManager(backend, bobPipe, testConfig())
	t.Cleanup(alice.Halt)
	t.Cleanup(bob.Halt)

	require.NoError(t, alice.Connect("bob"))
	require.NoError(t, bob.Accept("alice"))
	alice.PeerAttached(true)
	bob.PeerAttached(false)

	// Forwarding starts only after both sides are attached, mirroring the
	// relay's per-connection ordering of attach notices before envelopes.
	alicePipe.deliverTo(bob)
	bobPipe.deliverTo(alice)
	return
}

func waitState(t *testing.T, m *Manager, want domain.State) domain.StateEvent {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if se, ok := ev.(domain.StateEvent); ok && se.State == want {
				return se
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func waitMessage(t *testing.T, m *Manager) domain.MessageEvent {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if me, ok := ev.(domain.MessageEvent); ok {
				return me
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a message event")
		}
	}
}

func TestHandshakeReachesReadyInThreeEnvelopes(t *testing.T) {
	alice, bob, alicePipe, bobPipe := managerPair(t)

	waitState(t, alice, domain.StateReady)
	waitState(t, bob, domain.StateReady)

	// pubkey from alice, pubkey from bob, sesskey from alice.
	require.Equal(t, 1, alicePipe.countByType(domain.EnvelopePubKey))
	require.Equal(t, 1, alicePipe.countByType(domain.EnvelopeSessKey))
	require.Equal(t, 1, bobPipe.countByType(domain.EnvelopePubKey))
	require.Equal(t, 0, bobPipe.countByType(domain.EnvelopeSessKey))
}

func TestMessageRoundTrip(t *testing.T) {
	alice, bob, _, _ := managerPair(t)
	waitState(t, alice, domain.StateReady)
	waitState(t, bob, domain.StateReady)

	require.NoError(t, alice.Send([]byte("hello")))
	me := waitMessage(t, bob)
	require.Equal(t, []byte("hello"), me.Plaintext)
	require.Equal(t, domain.PeerID("alice"), me.Peer)

	require.NoError(t, bob.Send([]byte("hi back")))
	me = waitMessage(t, alice)
	require.Equal(t, []byte("hi back"), me.Plaintext)
}

func TestSendBeforeReady(t *testing.T) {
	backend := testBackend(t)
	m := NewManager(backend, newPipe(), testConfig())
	t.Cleanup(m.Halt)

	require.ErrorIs(t, m.Send([]byte("too soon")), domain.ErrNotReady)
	require.NoError(t, m.Connect("bob"))
	require.ErrorIs(t, m.Send([]byte("still too soon")), domain.ErrNotReady)
}

func TestPeerUnavailable(t *testing.T) {
	backend := testBackend(t)
	p := newPipe()
	m := NewManager(backend, p, testConfig())
	t.Cleanup(m.Halt)

	require.NoError(t, m.Connect("bob"))
	m.PeerUnavailable("peer not connected")

	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrPeerUnavailable)
	require.Equal(t, 0, p.countByType(domain.EnvelopeMessage))
}

func TestConnectionClosedDuringKeyExchange(t *testing.T) {
	backend := testBackend(t)
	p := newPipe()
	m := NewManager(backend, p, testConfig())
	t.Cleanup(m.Halt)

	require.NoError(t, m.Connect("bob"))
	m.PeerAttached(true)
	m.ConnectionClosed()

	se := waitState(t, m, domain.StateClosed)
	require.ErrorIs(t, se.Err, domain.ErrConnectionLost)
	require.ErrorIs(t, m.Send([]byte("x")), domain.ErrNotReady)
}

func TestConflictingPubKeyFailsSession(t *testing.T) {
	backend := testBackend(t)
	p := newPipe()
	m := NewManager(backend, p, testConfig())
	t.Cleanup(m.Halt)

	require.NoError(t, m.Accept("alice"))
	m.PeerAttached(false)

	first, err := crypto.GenerateIdentity(testKeyBits)
	require.NoError(t, err)
	second, err := crypto.GenerateIdentity(testKeyBits)
	require.NoError(t, err)

	m.OnEnvelope(domain.Envelope{Type: domain.EnvelopePubKey, Payload: first.Public()})
	m.OnEnvelope(domain.Envelope{Type: domain.EnvelopePubKey, Payload: second.Public()})

	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrKeyExchangeViolation)
}

func TestSessionKeyBeforeKeyExchangeFails(t *testing.T) {
	backend := testBackend(t)
	m := NewManager(backend, newPipe(), testConfig())
	t.Cleanup(m.Halt)

	require.NoError(t, m.Accept("alice"))
	m.PeerAttached(false)
	m.OnEnvelope(domain.Envelope{Type: domain.EnvelopeSessKey, Payload: []byte("early")})

	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrKeyExchangeViolation)
}

func TestMalformedSessionKeyFailsSession(t *testing.T) {
	backend := testBackend(t)
	m := NewManager(backend, newPipe(), testConfig())
	t.Cleanup(m.Halt)

	require.NoError(t, m.Accept("alice"))
	m.PeerAttached(false)

	peer, err := crypto.GenerateIdentity(testKeyBits)
	require.NoError(t, err)
	m.OnEnvelope(domain.Envelope{Type: domain.EnvelopePubKey, Payload: peer.Public()})
	m.OnEnvelope(domain.Envelope{Type: domain.EnvelopeSessKey, Payload: []byte("garbage")})

	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrSessionKeyEstablishment)
}

func TestStrayKeyMaterialIgnoredInReady(t *testing.T) {
	alice, bob, alicePipe, _ := managerPair(t)
	waitState(t, alice, domain.StateReady)
	waitState(t, bob, domain.StateReady)

	// Replaying alice's own handshake envelopes at bob must not disturb the
	// established session.
	bob.OnEnvelope(alicePipe.envelope(0)) // pubkey
	bob.OnEnvelope(alicePipe.envelope(1)) // sesskey

	require.NoError(t, alice.Send([]byte("still fine")))
	me := waitMessage(t, bob)
	require.Equal(t, []byte("still fine"), me.Plaintext)
}

func TestTamperedMessageNeverReachesUI(t *testing.T) {
	alice, bob, alicePipe, _ := managerPair(t)
	waitState(t, alice, domain.StateReady)
	waitState(t, bob, domain.StateReady)

	require.NoError(t, alice.Send([]byte("good")))
	require.Equal(t, []byte("good"), waitMessage(t, bob).Plaintext)

	tampered := alicePipe.envelope(2) // the message envelope
	tampered.Signature = append([]byte(nil), tampered.Signature...)
	tampered.Signature[0] ^= 0x01

	// Three consecutive rejects trip the tamper policy.
	bob.OnEnvelope(tampered)
	bob.OnEnvelope(tampered)
	bob.OnEnvelope(tampered)

	se := waitState(t, bob, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrPeerTampering)
}

func TestDoubleCloseSendsOneEnvelope(t *testing.T) {
	alice, bob, alicePipe, bobPipe := managerPair(t)
	waitState(t, alice, domain.StateReady)
	waitState(t, bob, domain.StateReady)

	alice.Close()
	alice.Close()

	se := waitState(t, alice, domain.StateClosed)
	require.NoError(t, se.Err)
	waitState(t, bob, domain.StateClosed)

	require.Equal(t, 1, alicePipe.countByType(domain.EnvelopeClose))
	// Bob was notified by alice and does not echo a close of his own.
	require.Equal(t, 0, bobPipe.countByType(domain.EnvelopeClose))
}

func TestAwaitPeerTimeout(t *testing.T) {
	backend := testBackend(t)
	cfg := testConfig()
	cfg.AwaitPeerTimeout = 50 * time.Millisecond
	m := NewManager(backend, newPipe(), cfg)
	t.Cleanup(m.Halt)

	require.NoError(t, m.Connect("bob"))
	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrHandshakeTimeout)
}

func TestKeyExchangeTimeout(t *testing.T) {
	backend := testBackend(t)
	cfg := testConfig()
	cfg.KeyExchangeTimeout = 50 * time.Millisecond
	m := NewManager(backend, newPipe(), cfg)
	t.Cleanup(m.Halt)

	require.NoError(t, m.Connect("bob"))
	m.PeerAttached(true)
	se := waitState(t, m, domain.StateFailed)
	require.ErrorIs(t, se.Err, domain.ErrHandshakeTimeout)
}
