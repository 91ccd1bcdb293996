// Package transport provides the websocket connection to the relay.
//
// Each relay envelope is carried in one text frame, so a Conn maps directly
// onto domain.Transport: one ReadMessage call yields one envelope.
package transport
