// Package app wires application dependencies for the CLI.
//
// It loads Config from TOML, builds the session store, key manager, relay
// dialer and session controller, and exposes them via the Wire struct for
// commands to use.
package app
