package types

// Account is a relay-side user record.
type Account struct {
	Name           Username `json:"name"`
	PasswordDigest string   `json:"password"`
	PublicKey      string   `json:"publicKey"`
}
