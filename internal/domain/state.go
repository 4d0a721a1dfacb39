package domain

// State enumerates the session state machine. Failed is absorbing and
// reachable from every non-terminal state; Closed is terminal.
type State int

const (
	StateIdle State = iota
	StateAwaitingPeer
	StateExchangingKeys
	StateEstablishingSessionKey
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                   "Idle",
	StateAwaitingPeer:           "AwaitingPeer",
	StateExchangingKeys:         "ExchangingKeys",
	StateEstablishingSessionKey: "EstablishingSessionKey",
	StateReady:                  "Ready",
	StateClosing:                "Closing",
	StateClosed:                 "Closed",
	StateFailed:                 "Failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Terminal reports whether no further transitions are possible, other than
// the cleanup path Failed -> Closed.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
