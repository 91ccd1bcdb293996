// Package relay implements the message relay that clients connect to.
//
// The relay keeps an account per registered name, binds each authenticated
// websocket to a session token, forwards ciphertext between online members
// and broadcasts the roster whenever membership changes. It never sees
// plaintext. Sessions idle out after a configurable TTL; a member whose
// socket drops stays resumable by token until then.
package relay
