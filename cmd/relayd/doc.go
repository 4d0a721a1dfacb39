// Command relayd runs the blind relay: it pairs connected users into
// tunnels and forwards encrypted envelopes between them without storage or
// cryptographic participation.
package main
