// Package session implements the secure session protocol: the write-once
// session keystore, the sign-encrypt-transmit message codec, the handshake
// state machine, and the per-conversation Manager facade that serializes
// every operation on a session through a single worker goroutine.
//
// The package never performs I/O of its own. Inbound envelopes and relay
// notices arrive through the Manager's callbacks; outbound envelopes leave
// through the domain.Transport the Manager was built with; decrypted
// plaintext reaches the UI layer only as events.
package session
