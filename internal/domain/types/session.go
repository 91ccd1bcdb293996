package types

// State is a SessionChannel protocol state.
type State int

const (
	Disconnected State = iota
	Connecting
	AwaitingCredentials
	Authenticating
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingCredentials:
		return "awaiting-credentials"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
