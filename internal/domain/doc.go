// Package domain defines the core types shared across the secure session
// protocol: peer identifiers, nominal key material types, the envelope tagged
// union exchanged over the relay, the session state machine states, the error
// taxonomy, and the interfaces the session core uses to talk to its
// collaborators (transport and UI layers).
package domain
