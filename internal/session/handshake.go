package session

import (
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"confy/internal/crypto"
	"confy/internal/domain"
)

// coordinator drives the ordered exchange of key material and owns the
// session state machine. It is purely synchronous: the Manager routes every
// input through a single goroutine, so no method here may block or be called
// concurrently.
type coordinator struct {
	log       *logging.Logger
	transport domain.Transport
	cfg       *Config

	state     domain.State
	peer      domain.PeerID
	initiator bool

	identity *crypto.Identity
	peerKey  *crypto.PeerKey
	keys     Keystore
	codec    *Codec

	failure      error
	closeSent    bool
	peerNotified bool
}

// envelopeResult reports what one inbound envelope produced. State changes
// are observed separately through c.state.
type envelopeResult struct {
	// plaintext is the decrypted, signature-verified message body, nil when
	// the envelope carried no deliverable message.
	plaintext []byte
	// notice carries informational text for the UI layer.
	notice string
	// msgErr is a per-message decode or verification failure. It does not by
	// itself change session state; the Manager applies the tamper policy.
	msgErr error
}

func newCoordinator(log *logging.Logger, transport domain.Transport, cfg *Config) *coordinator {
	return &coordinator{
		log:       log,
		transport: transport,
		cfg:       cfg,
		state:     domain.StateIdle,
	}
}

// connect starts the handshake toward peer and claims the tunnel.
func (c *coordinator) connect(peer domain.PeerID) error {
	if c.state != domain.StateIdle {
		return fmt.Errorf("connect in state %v: %w", c.state, domain.ErrClosed)
	}
	if !peer.Valid() {
		return fmt.Errorf("invalid peer identifier %q", peer)
	}
	c.peer = peer
	c.state = domain.StateAwaitingPeer
	if err := c.transport.Dial(peer); err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrConnectionLost, err))
		return c.failure
	}
	return nil
}

// accept prepares the responder side for a tunnel the peer already claimed.
// No dial: the relay will report the attach directly.
func (c *coordinator) accept(peer domain.PeerID) error {
	if c.state != domain.StateIdle {
		return fmt.Errorf("accept in state %v: %w", c.state, domain.ErrClosed)
	}
	if !peer.Valid() {
		return fmt.Errorf("invalid peer identifier %q", peer)
	}
	c.peer = peer
	c.state = domain.StateAwaitingPeer
	return nil
}

// peerAttached is the relay confirming both ends of the tunnel are present.
// The local identity is generated and its public key sent immediately.
func (c *coordinator) peerAttached(initiator bool) {
	if c.state != domain.StateAwaitingPeer {
		c.log.Warningf("peer attach in state %v ignored", c.state)
		return
	}
	c.initiator = initiator
	id, err := crypto.GenerateIdentity(c.cfg.IdentityBits)
	if err != nil {
		c.fail(err)
		return
	}
	c.identity = id
	c.state = domain.StateExchangingKeys
	pub := id.Public()
	c.log.Debugf("sending public key %s", crypto.Fingerprint(pub))
	if err := c.transport.SendEnvelope(domain.Envelope{
		Type:    domain.EnvelopePubKey,
		Payload: pub,
	}); err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrConnectionLost, err))
	}
}

// peerUnavailable is the relay refusing the tunnel: the peer is absent or
// the pair already has an active session.
func (c *coordinator) peerUnavailable(reason string) {
	if c.state != domain.StateAwaitingPeer {
		// Both sides dialing at once makes the relay refuse the second
		// claim after the first already attached us; that refusal is stale.
		c.log.Debugf("unavailable notice in state %v ignored", c.state)
		return
	}
	c.fail(fmt.Errorf("%w: %s", domain.ErrPeerUnavailable, reason))
}

// handleEnvelope consumes one inbound envelope. The switch is exhaustive
// over the closed envelope type set.
func (c *coordinator) handleEnvelope(env domain.Envelope) envelopeResult {
	switch env.Type {
	case domain.EnvelopePubKey:
		return c.handlePubKey(env)
	case domain.EnvelopeSessKey:
		return c.handleSessKey(env)
	case domain.EnvelopeMessage:
		return c.handleMessage(env)
	case domain.EnvelopeClose:
		return c.handleClose()
	case domain.EnvelopeError:
		return envelopeResult{notice: fmt.Sprintf("peer error: %s", env.Payload)}
	default:
		c.log.Warningf("unknown envelope type %q dropped", env.Type)
		return envelopeResult{}
	}
}

func (c *coordinator) handlePubKey(env domain.Envelope) envelopeResult {
	switch c.state {
	case domain.StateExchangingKeys:
		pk, err := crypto.ParsePeerKey(env.Payload)
		if err != nil {
			c.fail(err)
			return envelopeResult{}
		}
		c.peerKey = pk
		c.log.Infof("peer public key recorded: %s", crypto.Fingerprint(pk.Export()))
		c.establishSessionKey()
	case domain.StateEstablishingSessionKey:
		// A retransmit of the same key is harmless; a differing key while
		// already past the exchange is a replay/tamper signal.
		if !c.peerKey.Matches(env.Payload) {
			c.fail(fmt.Errorf("%w: conflicting public key", domain.ErrKeyExchangeViolation))
		}
	case domain.StateReady:
		c.log.Warningf("stray pubkey envelope in Ready ignored")
	default:
		c.log.Debugf("pubkey envelope in state %v dropped", c.state)
	}
	return envelopeResult{}
}

func (c *coordinator) handleSessKey(env domain.Envelope) envelopeResult {
	switch c.state {
	case domain.StateEstablishingSessionKey:
		if c.initiator {
			// The initiator generates the key; a peer sending one violates
			// the role asymmetry.
			c.fail(fmt.Errorf("%w: unexpected sesskey from responder", domain.ErrKeyExchangeViolation))
			return envelopeResult{}
		}
		raw, err := c.identity.Decrypt(env.Payload)
		if err != nil || len(raw) != domain.SessionKeyBytes {
			c.fail(fmt.Errorf("%w: undecryptable payload", domain.ErrSessionKeyEstablishment))
			return envelopeResult{}
		}
		var k domain.SessionKey
		copy(k[:], raw)
		if err := c.keys.Set(k); err != nil {
			c.fail(fmt.Errorf("%w: %v", domain.ErrSessionKeyEstablishment, err))
			return envelopeResult{}
		}
		c.enterReady()
	case domain.StateReady:
		c.log.Warningf("stray sesskey envelope in Ready ignored")
	case domain.StateExchangingKeys:
		// Session key before the public key exchange completed: the ordering
		// of key material is part of the protocol.
		c.fail(fmt.Errorf("%w: sesskey before key exchange completed", domain.ErrKeyExchangeViolation))
	default:
		c.log.Debugf("sesskey envelope in state %v dropped", c.state)
	}
	return envelopeResult{}
}

func (c *coordinator) handleMessage(env domain.Envelope) envelopeResult {
	if c.state != domain.StateReady {
		c.log.Warningf("message envelope in state %v dropped", c.state)
		return envelopeResult{}
	}
	plaintext, err := c.codec.Decode(env.Payload, env.Signature)
	if err != nil {
		return envelopeResult{msgErr: err}
	}
	return envelopeResult{plaintext: plaintext}
}

func (c *coordinator) handleClose() envelopeResult {
	if c.state.Terminal() || c.state == domain.StateClosing {
		return envelopeResult{}
	}
	c.peerNotified = true
	c.close()
	return envelopeResult{notice: "peer closed the session"}
}

// establishSessionKey runs after both public keys are exchanged. Role is
// asymmetric: the initiator generates, encrypts and ships the key; the
// responder only waits for it.
func (c *coordinator) establishSessionKey() {
	c.state = domain.StateEstablishingSessionKey
	if !c.initiator {
		return
	}
	k, err := c.keys.Generate()
	if err != nil {
		c.fail(err)
		return
	}
	sealed, err := c.peerKey.Encrypt(k.Slice())
	if err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrSessionKeyEstablishment, err))
		return
	}
	if err := c.transport.SendEnvelope(domain.Envelope{
		Type:    domain.EnvelopeSessKey,
		Payload: sealed,
	}); err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrConnectionLost, err))
		return
	}
	c.enterReady()
}

func (c *coordinator) enterReady() {
	c.codec = NewCodec(c.identity, c.peerKey, &c.keys)
	c.state = domain.StateReady
	c.log.Infof("session with %s ready", c.peer)
}

// send encrypts, signs and transmits plaintext. Valid only in Ready.
func (c *coordinator) send(plaintext []byte) error {
	if c.state != domain.StateReady {
		return fmt.Errorf("state %v: %w", c.state, domain.ErrNotReady)
	}
	payload, signature, err := c.codec.Encode(plaintext)
	if err != nil {
		return err
	}
	if err := c.transport.SendEnvelope(domain.Envelope{
		Type:      domain.EnvelopeMessage,
		Payload:   payload,
		Signature: signature,
	}); err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrConnectionLost, err))
		return c.failure
	}
	return nil
}

// close drives toward Closed: notify the peer unless already notified,
// destroy key material, release the tunnel. Idempotent; a second call in
// Closed is a no-op.
func (c *coordinator) close() {
	switch c.state {
	case domain.StateClosed:
		return
	case domain.StateFailed:
		// Cleanup already ran in fail; finish the terminal transition.
		c.state = domain.StateClosed
		return
	}
	c.state = domain.StateClosing
	if !c.peerNotified && !c.closeSent {
		if err := c.transport.SendEnvelope(domain.Envelope{Type: domain.EnvelopeClose}); err != nil {
			c.log.Debugf("close notify failed: %v", err)
		}
		c.closeSent = true
	}
	c.destroyKeyMaterial()
	c.state = domain.StateClosed
	if err := c.transport.RequestClose(); err != nil {
		c.log.Debugf("tunnel release failed: %v", err)
	}
}

// connectionClosed handles the transport vanishing underneath the session:
// an immediate transition to Closed regardless of handshake state, with full
// key teardown and no outbound traffic.
func (c *coordinator) connectionClosed() {
	if c.state == domain.StateClosed {
		return
	}
	if c.state != domain.StateFailed && c.failure == nil {
		c.failure = domain.ErrConnectionLost
	}
	c.destroyKeyMaterial()
	c.state = domain.StateClosed
}

// timeout expires the bounded wait of the current handshake phase.
func (c *coordinator) timeout() {
	switch c.state {
	case domain.StateAwaitingPeer, domain.StateExchangingKeys, domain.StateEstablishingSessionKey:
		c.fail(fmt.Errorf("%w in %v", domain.ErrHandshakeTimeout, c.state))
	}
}

// fail moves to the absorbing Failed state, records the triggering error,
// tells the peer why (informational) and tears down key material. Failed
// never transitions onward except to Closed via close.
func (c *coordinator) fail(err error) {
	if c.state.Terminal() {
		return
	}
	c.log.Errorf("session with %s failed: %v", c.peer, err)
	c.failure = err
	c.state = domain.StateFailed
	if sendErr := c.transport.SendEnvelope(domain.Envelope{
		Type:    domain.EnvelopeError,
		Payload: []byte(err.Error()),
	}); sendErr != nil {
		c.log.Debugf("error notify failed: %v", sendErr)
	}
	c.destroyKeyMaterial()
	if err := c.transport.RequestClose(); err != nil {
		c.log.Debugf("tunnel release failed: %v", err)
	}
}

func (c *coordinator) destroyKeyMaterial() {
	if c.identity != nil {
		c.identity.Destroy()
	}
	c.keys.Destroy()
	c.codec = nil
}
