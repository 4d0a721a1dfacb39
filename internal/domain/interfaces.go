package domain

// Transport is the session core's view of the relay connection. The
// implementation owns the underlying byte stream and serializes writes
// internally; the core never assumes anything about it beyond these calls.
type Transport interface {
	// Dial asks the relay to claim the tunnel to peer.
	Dial(peer PeerID) error
	// SendEnvelope forwards one envelope to the tunneled peer.
	SendEnvelope(env Envelope) error
	// RequestClose releases the tunnel. The relay notifies the peer.
	RequestClose() error
}

// Event is delivered to the UI layer. The concrete types below are the only
// implementations.
type Event interface {
	isEvent()
}

// StateEvent reports a state machine transition. Err is non-nil when the
// transition was caused by a failure (and for Closed after a lost
// connection).
type StateEvent struct {
	State State
	Err   error
}

// MessageEvent delivers decrypted, signature-verified plaintext from the
// peer. This is the only path plaintext ever takes out of the core.
type MessageEvent struct {
	Peer      PeerID
	Plaintext []byte
}

// NoticeEvent carries informational text: relay notices, anomalies that did
// not change session state, and the reason codes of error envelopes.
type NoticeEvent struct {
	Text string
}

func (StateEvent) isEvent()   {}
func (MessageEvent) isEvent() {}
func (NoticeEvent) isEvent()  {}
