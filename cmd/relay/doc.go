// Package main runs the cipherlink relay: a websocket broker that
// authenticates accounts, publishes the roster of online users with their
// public keys and forwards ciphertext between them.
//
// Endpoints
//
//	GET /ws
//	    Websocket upgrade. Every frame is one JSON envelope; clients send
//	    actions (register, login, authorize, message, logout) and receive
//	    events (login, authorization, userlistChange, message, invalidUser).
//
//	GET /healthz
//	    {"status":"ok","online":N}
//
// Behaviour
//
//   - Accounts live in memory, a JSON file or a bbolt database (Accounts.Backend).
//   - A token survives a dropped connection for Server.SessionTTL seconds so
//     clients can resume with authorize.
//   - The relay never sees plaintext or private keys.
//   - When Metrics.Address is set, prometheus metrics are served at /metrics.
package main
