package server

import "encoding/json"

// Engine is the game rules collaborator. The session layer treats it as
// opaque: in-match messages flow in tagged with the sender's player id,
// per-player view objects flow out and are embedded verbatim in Playing
// state updates.
type Engine interface {
	HandleMessage(fromPlayerID string, payload json.RawMessage)
	StateFor(playerID string) any
}

// EngineSeat is one entry of the ordered player list a new engine is
// constructed with.
type EngineSeat struct {
	PlayerID string
	Name     string
}

// EngineFactory builds a fresh engine for a lobby whose ready-check
// passed.
type EngineFactory func(seats []EngineSeat) Engine
