package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCredentials is returned when a username or password is blank.
	ErrEmptyCredentials = errors.New("please fill in all fields")
	// ErrPasswordMismatch is returned when a registration confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrNotAuthenticated is returned by operations that need an authenticated session.
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrInvalidState is returned when an operation is not valid in the current state.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrUnknownPeer is returned when a peer id does not resolve in the roster.
	ErrUnknownPeer = errors.New("peer is not in the roster")
	// ErrNoFocus is returned when sending without a selected peer.
	ErrNoFocus = errors.New("no peer selected")
)

// KeyManagerErrorKind classifies identity key failures.
type KeyManagerErrorKind int

const (
	GenerationFailed KeyManagerErrorKind = iota + 1
	StorageUnavailable
)

func (k KeyManagerErrorKind) String() string {
	switch k {
	case GenerationFailed:
		return "key generation failed"
	case StorageUnavailable:
		return "key storage unavailable"
	default:
		return "key manager error"
	}
}

// KeyManagerError wraps failures from key generation and persistence.
type KeyManagerError struct {
	Kind KeyManagerErrorKind
	Err  error
}

func (e *KeyManagerError) Error() string { return format(e.Kind.String(), e.Err) }
func (e *KeyManagerError) Unwrap() error { return e.Err }

// Is matches any KeyManagerError of the same kind.
func (e *KeyManagerError) Is(target error) bool {
	t, ok := target.(*KeyManagerError)
	return ok && t.Kind == e.Kind
}

// EncryptionErrorKind classifies outgoing message failures.
type EncryptionErrorKind int

const (
	MalformedKey EncryptionErrorKind = iota + 1
	PayloadTooLarge
	// SerializationFailed covers failures of the cipher itself or of
	// encoding its output.
	SerializationFailed
)

func (k EncryptionErrorKind) String() string {
	switch k {
	case MalformedKey:
		return "malformed public key"
	case PayloadTooLarge:
		return "message too long"
	case SerializationFailed:
		return "encryption failed"
	default:
		return "encryption error"
	}
}

// EncryptionError is returned by the codec when a message cannot be sealed.
type EncryptionError struct {
	Kind EncryptionErrorKind
	Err  error
}

func (e *EncryptionError) Error() string { return format(e.Kind.String(), e.Err) }
func (e *EncryptionError) Unwrap() error { return e.Err }

// Is matches any EncryptionError of the same kind.
func (e *EncryptionError) Is(target error) bool {
	t, ok := target.(*EncryptionError)
	return ok && t.Kind == e.Kind
}

// DecryptionErrorKind classifies incoming message failures.
type DecryptionErrorKind int

const (
	KeyMismatch DecryptionErrorKind = iota + 1
	Corrupted
)

func (k DecryptionErrorKind) String() string {
	switch k {
	case KeyMismatch:
		return "message was not encrypted for this key"
	case Corrupted:
		return "ciphertext is corrupted"
	default:
		return "decryption error"
	}
}

// DecryptionError is returned by the codec when a ciphertext cannot be opened.
type DecryptionError struct {
	Kind DecryptionErrorKind
	Err  error
}

func (e *DecryptionError) Error() string { return format(e.Kind.String(), e.Err) }
func (e *DecryptionError) Unwrap() error { return e.Err }

// Is matches any DecryptionError of the same kind.
func (e *DecryptionError) Is(target error) bool {
	t, ok := target.(*DecryptionError)
	return ok && t.Kind == e.Kind
}

// ProtocolErrorKind classifies envelope failures.
type ProtocolErrorKind int

const (
	UnknownEvent ProtocolErrorKind = iota + 1
	MalformedEnvelope
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case UnknownEvent:
		return "unknown event"
	case MalformedEnvelope:
		return "malformed envelope"
	default:
		return "protocol error"
	}
}

// ProtocolError describes an envelope that could not be dispatched.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Err  error
}

func (e *ProtocolError) Error() string { return format(e.Kind.String(), e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// Is matches any ProtocolError of the same kind.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Kind == e.Kind
}

// SessionErrorKind classifies session-level failures.
type SessionErrorKind int

const (
	InvalidCredentials SessionErrorKind = iota + 1
	TokenRevoked
	TransportClosed
)

func (k SessionErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid credentials"
	case TokenRevoked:
		return "session revoked by relay"
	case TransportClosed:
		return "connection to relay closed"
	default:
		return "session error"
	}
}

// SessionError is surfaced to the UI on authentication and transport failures.
type SessionError struct {
	Kind SessionErrorKind
	// Reason is the relay supplied message, if any.
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Reason != "" {
		return format(e.Kind.String()+": "+e.Reason, e.Err)
	}
	return format(e.Kind.String(), e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Is matches any SessionError of the same kind.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is matching by kind.
var (
	ErrGenerationFailed   = &KeyManagerError{Kind: GenerationFailed}
	ErrStorageUnavailable = &KeyManagerError{Kind: StorageUnavailable}

	ErrMalformedKey        = &EncryptionError{Kind: MalformedKey}
	ErrPayloadTooLarge     = &EncryptionError{Kind: PayloadTooLarge}
	ErrSerializationFailed = &EncryptionError{Kind: SerializationFailed}

	ErrKeyMismatch = &DecryptionError{Kind: KeyMismatch}
	ErrCorrupted   = &DecryptionError{Kind: Corrupted}

	ErrUnknownEvent      = &ProtocolError{Kind: UnknownEvent}
	ErrMalformedEnvelope = &ProtocolError{Kind: MalformedEnvelope}

	ErrInvalidCredentials = &SessionError{Kind: InvalidCredentials}
	ErrTokenRevoked       = &SessionError{Kind: TokenRevoked}
	ErrTransportClosed    = &SessionError{Kind: TransportClosed}
)

func format(msg string, err error) string {
	if err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, err)
}
