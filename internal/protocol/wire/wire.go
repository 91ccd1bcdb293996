package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"cipherlink/internal/domain"
)

// Action is the discriminator of an outbound request.
type Action string

const (
	ActionRegister  Action = "register"
	ActionLogin     Action = "login"
	ActionAuthorize Action = "authorize"
	ActionMessage   Action = "message"
	ActionLogout    Action = "logout"

	// ActionAuthenticate is the legacy spelling of ActionAuthorize.
	ActionAuthenticate Action = "authenticate"
)

// Request is an outbound envelope. Only the fields relevant to Action are set.
type Request struct {
	Action   Action `json:"action"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
	PubKey   string `json:"pubKey,omitempty"`
	Token    string `json:"token,omitempty"`
	Target   string `json:"target,omitempty"`
	Message  string `json:"message,omitempty"`
}

// RegisterRequest builds a registration request.
func RegisterRequest(name domain.Username, passwordDigest, pubKey string) Request {
	return Request{Action: ActionRegister, Name: name.String(), Password: passwordDigest, PubKey: pubKey}
}

// LoginRequest builds a login request.
func LoginRequest(name domain.Username, passwordDigest, pubKey string) Request {
	return Request{Action: ActionLogin, Name: name.String(), Password: passwordDigest, PubKey: pubKey}
}

// AuthorizeRequest builds a token resumption request.
func AuthorizeRequest(token domain.Token) Request {
	return Request{Action: ActionAuthorize, Token: token.String()}
}

// MessageRequest builds a message request carrying ciphertext for target.
func MessageRequest(token domain.Token, target domain.PeerID, ciphertext string) Request {
	return Request{Action: ActionMessage, Token: token.String(), Target: target.String(), Message: ciphertext}
}

// LogoutRequest builds a logout notice.
func LogoutRequest(token domain.Token) Request {
	return Request{Action: ActionLogout, Token: token.String()}
}

// EncodeRequest serialises r.
func EncodeRequest(r Request) ([]byte, error) { return json.Marshal(r) }

// DecodeRequest parses an outbound envelope, normalising legacy actions.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: err}
	}
	if r.Action == "" {
		return Request{}, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: errors.New("missing action")}
	}
	if r.Action == ActionAuthenticate {
		r.Action = ActionAuthorize
	}
	return r, nil
}

// Event names as sent by the relay.
const (
	EventAuthorization  = "authorization"
	EventLogin          = "login"
	EventMessage        = "message"
	EventUserlistChange = "userlistChange"
	EventInvalidUser    = "invalidUser"
)

var legacyEvents = map[string]string{
	"authentication": EventAuthorization,
	"messageEvent":   EventMessage,
	"userInvalid":    EventInvalidUser,
}

// Event is an inbound envelope. The concrete type is one of Authorization,
// Login, Message, UserlistChange, InvalidUser or Unknown.
type Event interface {
	// Name returns the event discriminator.
	Name() string
	isEvent()
}

// Authorization answers an authorize request.
type Authorization struct {
	Valid bool
	// Users is nil when the event carried no roster.
	Users []domain.Peer
}

// Login answers a login or register request.
type Login struct {
	Valid    bool
	Token    domain.Token
	Username domain.Username
	Error    string
	Users    []domain.Peer
}

// Message carries ciphertext from a peer.
type Message struct {
	Sender  domain.PeerID
	Message string
}

// UserlistChange carries a full roster snapshot.
type UserlistChange struct {
	Users []domain.Peer
}

// InvalidUser reports that the relay no longer recognises our token.
type InvalidUser struct{}

// Unknown is any event with an unrecognised discriminator.
type Unknown struct {
	Event string
	Raw   json.RawMessage
}

func (Authorization) Name() string  { return EventAuthorization }
func (Login) Name() string          { return EventLogin }
func (Message) Name() string        { return EventMessage }
func (UserlistChange) Name() string { return EventUserlistChange }
func (InvalidUser) Name() string    { return EventInvalidUser }
func (u Unknown) Name() string      { return u.Event }

func (Authorization) isEvent()  {}
func (Login) isEvent()          {}
func (Message) isEvent()        {}
func (UserlistChange) isEvent() {}
func (InvalidUser) isEvent()    {}
func (Unknown) isEvent()        {}

// envelope is the flat JSON shape shared by every event.
type envelope struct {
	Event    string         `json:"event"`
	Valid    *bool          `json:"valid,omitempty"`
	Token    string         `json:"token,omitempty"`
	Username string         `json:"username,omitempty"`
	Error    string         `json:"error,omitempty"`
	Sender   string         `json:"sender,omitempty"`
	Message  string         `json:"message,omitempty"`
	Users    *[]domain.Peer `json:"users,omitempty"`
}

// DecodeEvent parses an inbound envelope into its concrete event type.
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: err}
	}
	if env.Event == "" {
		return nil, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: errors.New("missing event")}
	}
	name := env.Event
	if canonical, ok := legacyEvents[name]; ok {
		name = canonical
	}

	switch name {
	case EventAuthorization:
		return Authorization{Valid: env.valid(), Users: env.users()}, nil
	case EventLogin:
		return Login{
			Valid:    env.valid(),
			Token:    domain.Token(env.Token),
			Username: domain.Username(env.Username),
			Error:    env.Error,
			Users:    env.users(),
		}, nil
	case EventMessage:
		if env.Sender == "" {
			return nil, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: errors.New("message without sender")}
		}
		return Message{Sender: domain.PeerID(env.Sender), Message: env.Message}, nil
	case EventUserlistChange:
		if env.Users == nil {
			return nil, &domain.ProtocolError{Kind: domain.MalformedEnvelope, Err: errors.New("userlistChange without users")}
		}
		return UserlistChange{Users: env.users()}, nil
	case EventInvalidUser:
		return InvalidUser{}, nil
	default:
		return Unknown{Event: env.Event, Raw: append(json.RawMessage(nil), b...)}, nil
	}
}

// EncodeEvent serialises e using the canonical event names.
func EncodeEvent(e Event) ([]byte, error) {
	env := envelope{Event: e.Name()}
	switch ev := e.(type) {
	case Authorization:
		env.Valid = &ev.Valid
		env.Users = usersPtr(ev.Users)
	case Login:
		env.Valid = &ev.Valid
		env.Token = ev.Token.String()
		env.Username = ev.Username.String()
		env.Error = ev.Error
		env.Users = usersPtr(ev.Users)
	case Message:
		env.Sender = ev.Sender.String()
		env.Message = ev.Message
	case UserlistChange:
		users := ev.Users
		if users == nil {
			users = []domain.Peer{}
		}
		env.Users = &users
	case InvalidUser:
	case Unknown:
		return nil, fmt.Errorf("cannot encode unknown event %q", ev.Event)
	}
	return json.Marshal(env)
}

func (e envelope) valid() bool { return e.Valid != nil && *e.Valid }

func (e envelope) users() []domain.Peer {
	if e.Users == nil {
		return nil
	}
	if *e.Users == nil {
		return []domain.Peer{}
	}
	return *e.Users
}

func usersPtr(users []domain.Peer) *[]domain.Peer {
	if users == nil {
		return nil
	}
	return &users
}
