// Package client is the session controller used by front ends.
//
// A Controller validates user input, runs key generation in the background
// while signalling busy to observers, and delegates the protocol work to a
// session.Channel. One Controller serves one session at a time.
package client
