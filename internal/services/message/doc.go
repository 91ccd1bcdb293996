// Package message is the encrypt/decrypt path of a session.
//
// Outgoing text is sealed to the recipient's public key and recorded in the
// roster; incoming ciphertext is opened with the local private key. A failure
// on either side is confined to that one message and shows up as an error
// entry in the conversation.
package message
