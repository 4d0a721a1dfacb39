// Package relay contains the two collaborators on either side of the
// untrusted relay link: the websocket Client, which implements the session
// core's transport contract, and the Server, a blind relay that forwards
// envelopes between tunneled peers without storing or inspecting them.
//
// The relay takes no cryptographic part in the protocol. It knows peer
// names, tunnel pairings and opaque frames, nothing else.
package relay
