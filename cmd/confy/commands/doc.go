// Package commands implements the confy CLI: a line-oriented end-to-end
// encrypted chat client speaking the secure session protocol over a relay.
package commands
