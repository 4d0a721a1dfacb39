package domain

import "strings"

// PeerID identifies a connected user on a relay. It is opaque to the core,
// non-empty, and stable for the lifetime of a session.
type PeerID string

// Valid reports whether the identifier is usable for addressing. The '@'
// separator is reserved by the relay URL scheme.
func (p PeerID) Valid() bool {
	return p != "" && !strings.ContainsAny(string(p), "@/ ")
}

// Tunnel is the unordered pair of the two peer identifiers addressing one
// active conversation slot on the relay. A and B are held in canonical order
// so any two peers derive the same Tunnel regardless of who dialed.
type Tunnel struct {
	A PeerID
	B PeerID
}

// NewTunnel returns the canonical tunnel for the two peers.
func NewTunnel(x, y PeerID) Tunnel {
	if y < x {
		x, y = y, x
	}
	return Tunnel{A: x, B: y}
}

// Other returns the counterpart of p in the tunnel.
func (t Tunnel) Other(p PeerID) PeerID {
	if p == t.A {
		return t.B
	}
	return t.A
}

func (t Tunnel) String() string {
	return string(t.A) + "@" + string(t.B)
}
