// Package roster keeps the client's view of reachable peers: the roster
// published by the relay, one conversation log per peer, unread counters and
// the focused peer.
//
// Logs and counters are keyed by peer id and never outlive the peer's
// presence in the roster; every snapshot prunes what it no longer lists.
package roster
