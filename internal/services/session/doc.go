// Package session drives the client side of the relay protocol.
//
// A Channel owns the transport, decodes one envelope at a time in arrival
// order and moves through
//
//	Disconnected -> Connecting -> AwaitingCredentials -> Authenticating -> Authenticated
//
// Roster events go to the roster store, message events to the message
// service, and authentication responses and invalid-session pushes change
// state. A closed or failed transport ends the Channel; nothing reconnects.
package session
