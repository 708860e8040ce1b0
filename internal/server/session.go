package server

import "github.com/google/uuid"

// Session is a logical player identity, decoupled from any physical
// connection. The public playerID is stable for the life of the
// identity and never reused; reconnectSecret is the bearer credential
// that lets a new connection resume the session, disclosed exactly once
// per handshake in the HelloResponse.
type Session struct {
	playerID        string
	reconnectSecret string
	name            string

	// lobby is a reference, not ownership; nil while idle.
	lobby *Lobby

	// conn is the currently bound connection; nil only transiently
	// after its transport ended with no takeover.
	conn *Connection
}

// newSession mints a fresh identity. Both values come from uuid v4,
// which draws from crypto/rand; the secret must never come from an
// ordinary pseudo-random source since it is all that is needed to take
// over the session.
func newSession() *Session {
	return &Session{
		playerID:        uuid.NewString(),
		reconnectSecret: uuid.NewString(),
	}
}

// PlayerID returns the public player id.
func (s *Session) PlayerID() string { return s.playerID }

// Name returns the display name, empty until SetName.
func (s *Session) Name() string { return s.name }
