// Package app wires the client-side dependency graph: logging backend,
// relay connection, and per-conversation session managers.
package app
