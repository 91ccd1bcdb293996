// Package wire encodes and decodes the JSON envelopes exchanged with the
// relay.
//
// Outbound requests carry an "action" discriminator:
//
//	register  {name, password, pubKey}
//	login     {name, password, pubKey}
//	authorize {token}
//	message   {token, target, message}
//	logout    {token}
//
// Inbound events carry an "event" discriminator and decode into one concrete
// type per kind (Authorization, Login, Message, UserlistChange, InvalidUser).
// Unrecognised discriminators decode into Unknown so callers can log and drop
// them. Legacy spellings used by older relays (authenticate, authentication,
// messageEvent, userInvalid) are accepted on decode.
package wire
