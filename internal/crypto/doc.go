// Package crypto implements the primitive operations of the session
// protocol: the RSA-4096 asymmetric identity (OAEP encryption, PSS
// signatures), the AES-256-CFB message cipher, and public key
// fingerprinting.
//
// Everything here is pure computation with no I/O; the session state machine
// decides when each operation runs.
package crypto
