package session

import (
	"fmt"
	"time"

	"gopkg.in/op/go-logging.v1"

	"confy/internal/domain"
	"confy/internal/log"
	"confy/internal/worker"
)

// Manager is the per-conversation facade. It wires the handshake
// coordinator, keystore and codec together and serializes every inbound
// envelope, relay notice and local operation through one worker goroutine,
// so no two operations on the same session ever interleave. Independent
// sessions share nothing but the transport connection.
//
// Decrypted plaintext and state changes surface on Events; the consumer is
// expected to drain the channel.
type Manager struct {
	worker.Worker

	log   *logging.Logger
	cfg   Config
	coord *coordinator

	opCh    chan interface{}
	eventCh chan domain.Event

	lastState domain.State
	badRun    int
}

type opConnect struct {
	peer   domain.PeerID
	accept bool
	errCh  chan error
}

type opSend struct {
	plaintext []byte
	errCh     chan error
}

type opClose struct {
	doneCh chan struct{}
}

type opEnvelope struct {
	env domain.Envelope
}

type opAttached struct {
	initiator bool
}

type opUnavailable struct {
	reason string
}

type opConnClosed struct{}

// NewManager builds a session over the given transport and starts its
// worker.
func NewManager(logBackend *log.Backend, transport domain.Transport, cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		log:     logBackend.GetLogger("session"),
		cfg:     cfg,
		opCh:    make(chan interface{}),
		eventCh: make(chan domain.Event, 16),
	}
	m.coord = newCoordinator(m.log, transport, &m.cfg)
	m.lastState = domain.StateIdle
	m.Go(m.run)
	return m
}

// Events delivers plaintext, state changes and notices to the UI layer.
func (m *Manager) Events() <-chan domain.Event {
	return m.eventCh
}

// Connect claims the tunnel to peer and starts the handshake as initiator.
func (m *Manager) Connect(peer domain.PeerID) error {
	return m.roundTrip(opConnect{peer: peer, errCh: make(chan error, 1)})
}

// Accept prepares the session for a tunnel the peer already claimed; the
// relay's attach notice follows through PeerAttached.
func (m *Manager) Accept(peer domain.PeerID) error {
	return m.roundTrip(opConnect{peer: peer, accept: true, errCh: make(chan error, 1)})
}

// Send signs, encrypts and transmits plaintext. Valid only in Ready.
func (m *Manager) Send(plaintext []byte) error {
	return m.roundTrip(opSend{plaintext: plaintext, errCh: make(chan error, 1)})
}

// Close drives the session toward Closed. Idempotent: a second call is a
// no-op and produces no further envelopes.
func (m *Manager) Close() {
	o := opClose{doneCh: make(chan struct{})}
	select {
	case m.opCh <- o:
		select {
		case <-o.doneCh:
		case <-m.HaltCh():
		}
	case <-m.HaltCh():
	}
}

// OnEnvelope is the transport's inbound entry point.
func (m *Manager) OnEnvelope(env domain.Envelope) {
	m.post(opEnvelope{env: env})
}

// PeerAttached is the relay confirming the peer is present on the tunnel.
// The first side to have claimed the tunnel is the initiator.
func (m *Manager) PeerAttached(initiator bool) {
	m.post(opAttached{initiator: initiator})
}

// PeerUnavailable is the relay refusing the tunnel.
func (m *Manager) PeerUnavailable(reason string) {
	m.post(opUnavailable{reason: reason})
}

// ConnectionClosed is the transport reporting the underlying connection is
// gone. Observable in any state; triggers full key teardown.
func (m *Manager) ConnectionClosed() {
	m.post(opConnClosed{})
}

func (m *Manager) post(o interface{}) {
	select {
	case m.opCh <- o:
	case <-m.HaltCh():
	}
}

func (m *Manager) roundTrip(o interface{}) error {
	var errCh chan error
	switch v := o.(type) {
	case opConnect:
		errCh = v.errCh
	case opSend:
		errCh = v.errCh
	}
	select {
	case m.opCh <- o:
	case <-m.HaltCh():
		return domain.ErrClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-m.HaltCh():
		return domain.ErrClosed
	}
}

func (m *Manager) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-m.HaltCh():
			m.coord.close()
			return
		case <-timer.C:
			m.coord.timeout()
		case o := <-m.opCh:
			m.handleOp(o)
		}
		m.observeState(timer)
	}
}

func (m *Manager) handleOp(o interface{}) {
	switch v := o.(type) {
	case opConnect:
		if v.accept {
			v.errCh <- m.coord.accept(v.peer)
		} else {
			v.errCh <- m.coord.connect(v.peer)
		}
	case opSend:
		v.errCh <- m.coord.send(v.plaintext)
	case opClose:
		m.coord.close()
		close(v.doneCh)
	case opEnvelope:
		m.handleEnvelope(v.env)
	case opAttached:
		m.coord.peerAttached(v.initiator)
	case opUnavailable:
		m.coord.peerUnavailable(v.reason)
	case opConnClosed:
		m.coord.connectionClosed()
	default:
		m.log.Errorf("bug: unknown op %T", o)
	}
}

func (m *Manager) handleEnvelope(env domain.Envelope) {
	res := m.coord.handleEnvelope(env)
	if res.notice != "" {
		m.emit(domain.NoticeEvent{Text: res.notice})
	}
	if res.msgErr != nil {
		m.badRun++
		m.log.Warningf("message rejected (%d consecutive): %v", m.badRun, res.msgErr)
		m.emit(domain.NoticeEvent{Text: fmt.Sprintf("message rejected: %v", res.msgErr)})
		if m.badRun >= m.cfg.TamperThreshold {
			m.coord.fail(fmt.Errorf("%w: %d consecutive rejected messages",
				domain.ErrPeerTampering, m.badRun))
		}
		return
	}
	if res.plaintext != nil {
		m.badRun = 0
		m.emit(domain.MessageEvent{Peer: m.coord.peer, Plaintext: res.plaintext})
	}
}

// observeState emits a StateEvent on every transition and keeps the phase
// timer armed for the bounded handshake waits.
func (m *Manager) observeState(timer *time.Timer) {
	s := m.coord.state
	if s == m.lastState {
		return
	}
	m.lastState = s

	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	switch s {
	case domain.StateAwaitingPeer:
		timer.Reset(m.cfg.AwaitPeerTimeout)
	case domain.StateExchangingKeys:
		timer.Reset(m.cfg.KeyExchangeTimeout)
	case domain.StateEstablishingSessionKey:
		timer.Reset(m.cfg.SessionKeyTimeout)
	}

	var err error
	switch s {
	case domain.StateFailed:
		err = m.coord.failure
	case domain.StateClosed:
		// Surface a lost connection once, on the terminal event.
		err = m.coord.failure
	}
	m.emit(domain.StateEvent{State: s, Err: err})
}

func (m *Manager) emit(ev domain.Event) {
	select {
	case m.eventCh <- ev:
	case <-m.HaltCh():
	}
}
