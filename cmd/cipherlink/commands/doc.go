// Package commands defines the cipherlink CLI.
//
// Commands
//
//   - register     Create an account on the relay and log in
//   - login        Log in to an existing account
//   - chat         Interactive session with the stored login
//   - send         Encrypt and send a single message
//   - peers        List online peers
//   - logout       End the session and erase local identity material
//   - fingerprint  Print the fingerprint of the stored public key
//
// # Implementation
//
// The root command loads the TOML config, applies flag overrides and builds
// the dependency graph (store, key manager, dialer, controller) before any
// subcommand runs. Logins persist the relay token and keys, so later
// commands resume the session without asking for credentials.
package commands
