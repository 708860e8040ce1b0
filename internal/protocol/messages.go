// Package protocol defines the wire messages exchanged between clients
// and the card room server. Every frame is a discriminated JSON object:
// a type tag plus a type-specific payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> server message types.
const (
	TypeHello       = "Hello"
	TypeSetName     = "SetName"
	TypeCreateLobby = "CreateLobby"
	TypeJoinLobby   = "JoinLobby"
	TypeReadyToPlay = "ReadyToPlay"
	TypeLeaveLobby  = "LeaveLobby"
	TypeGameMessage = "GameMessage"
	TypePing        = "Ping"
)

// Server -> client message types.
const (
	TypeHelloResponse = "HelloResponse"
	TypeStateUpdate   = "StateUpdate"
	TypeError         = "Error"
	TypePong          = "Pong"
)

// GameMessage payloads are opaque to the session layer except for this
// inner discriminator, which the lobby inspects to end a match.
const innerLeaveGame = "LeaveGame"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type HelloPayload struct {
	ReconnectSecret string `json:"reconnectSecret,omitempty"`
}

type SetNamePayload struct {
	Name string `json:"name"`
}

type CreateLobbyPayload struct {
	LobbyName string `json:"lobbyName"`
}

type JoinLobbyPayload struct {
	LobbyName string `json:"lobbyName"`
}

type ReadyToPlayPayload struct {
	Ready bool `json:"ready"`
}

type HelloResponsePayload struct {
	PlayerID        string `json:"playerId"`
	ReconnectSecret string `json:"reconnectSecret"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// View discriminators for StateUpdate payloads.
const (
	ViewIdle    = "idle"
	ViewInLobby = "lobby"
	ViewPlaying = "playing"
)

// StateUpdatePayload is the per-client rendering of current server
// state. Exactly one view is active; the other fields are zero.
type StateUpdatePayload struct {
	View string `json:"view"`

	// idle
	OpenLobbies []LobbySummary `json:"openLobbies,omitempty"`

	// lobby and playing
	LobbyName string `json:"lobbyName,omitempty"`

	// lobby
	Members []Member `json:"members,omitempty"`
	Message string   `json:"message,omitempty"`

	// playing: the engine's per-player view, embedded verbatim
	Game any `json:"game,omitempty"`
}

type LobbySummary struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}

type Member struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Ready    bool   `json:"ready"`
}

var clientTypes = map[string]bool{
	TypeHello:       true,
	TypeSetName:     true,
	TypeCreateLobby: true,
	TypeJoinLobby:   true,
	TypeReadyToPlay: true,
	TypeLeaveLobby:  true,
	TypeGameMessage: true,
	TypePing:        true,
}

// DecodeClient parses an inbound text frame. A malformed envelope or an
// unknown discriminator is a decode error; the caller logs it and drops
// the message without touching the connection.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("PROTOCOL_ERROR: invalid JSON: %w", err)
	}
	if !clientTypes[msg.Type] {
		return ClientMessage{}, fmt.Errorf("PROTOCOL_ERROR: unknown message type %q", msg.Type)
	}
	return msg, nil
}

// IsLeaveGame reports whether a GameMessage payload carries the
// distinguished LeaveGame sub-variant.
func IsLeaveGame(payload json.RawMessage) bool {
	var inner struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &inner); err != nil {
		return false
	}
	return inner.Type == innerLeaveGame
}
