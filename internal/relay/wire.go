package relay

import "confy/internal/domain"

// Relay control events carried in frames alongside envelopes.
const (
	// eventDial asks the relay to claim the tunnel to Peer (client to server).
	eventDial = "dial"
	// eventHangup releases the tunnel to Peer (client to server).
	eventHangup = "hangup"
	// eventAttached confirms both ends of the tunnel are present. Initiator
	// marks which side claimed the tunnel first.
	eventAttached = "attached"
	// eventUnavailable refuses a dial: peer absent or tunnel occupied.
	eventUnavailable = "unavailable"
	// eventDetached reports the peer released the tunnel or dropped off.
	eventDetached = "detached"
)

// frame is the JSON unit exchanged between client and relay. Exactly one of
// Event or Envelope is set: control frames steer tunnels, envelope frames
// are forwarded blind. Peer addresses the tunnel counterpart; the relay
// rewrites it to the sender's name when forwarding.
type frame struct {
	Event     string           `json:"event,omitempty"`
	Peer      domain.PeerID    `json:"peer,omitempty"`
	Initiator bool             `json:"initiator,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Envelope  *domain.Envelope `json:"envelope,omitempty"`
}
