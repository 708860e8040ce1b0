package server

import (
	"sort"

	"cardroom-server/internal/protocol"
)

// View building and push dispatch. Delivery is synchronous with the
// triggering event and fire-and-forget: a failed push looks exactly like
// a connection that is already gone and is not treated as an error.

// sendStateTo pushes one session's current view to its connection. A
// session with no name yet is skipped, it has nothing to render.
func (r *Registry) sendStateTo(sess *Session) {
	if sess == nil || sess.conn == nil || sess.name == "" {
		return
	}
	sess.conn.send(protocol.ServerMessage{
		Type:    protocol.TypeStateUpdate,
		Payload: r.viewFor(sess),
	})
}

// viewFor computes the personalized rendering of current state.
func (r *Registry) viewFor(sess *Session) protocol.StateUpdatePayload {
	l := sess.lobby
	switch {
	case l == nil:
		return r.idleView()
	case l.phase == phaseInGame:
		return protocol.StateUpdatePayload{
			View:      protocol.ViewPlaying,
			LobbyName: l.name,
			Game:      l.engine.StateFor(sess.playerID),
		}
	default:
		return lobbyView(l)
	}
}

func (r *Registry) idleView() protocol.StateUpdatePayload {
	lobbies := make([]protocol.LobbySummary, 0, len(r.openLobbies))
	for name, l := range r.openLobbies {
		lobbies = append(lobbies, protocol.LobbySummary{
			Name:        name,
			PlayerCount: l.memberCount(),
		})
	}
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].Name < lobbies[j].Name })
	return protocol.StateUpdatePayload{View: protocol.ViewIdle, OpenLobbies: lobbies}
}

func lobbyView(l *Lobby) protocol.StateUpdatePayload {
	members := make([]protocol.Member, 0, len(l.order))
	for _, id := range l.order {
		m := l.members[id]
		members = append(members, protocol.Member{
			PlayerID: id,
			Name:     m.session.name,
			Ready:    m.ready,
		})
	}
	return protocol.StateUpdatePayload{
		View:      protocol.ViewInLobby,
		LobbyName: l.name,
		Members:   members,
		Message:   l.notice,
	}
}

// broadcastIdle refreshes the open-lobby listing for every named session
// that is not in a lobby. Triggered when the listing itself changes:
// lobby creation, closure, or an open lobby moving to play.
func (r *Registry) broadcastIdle() {
	view := protocol.ServerMessage{
		Type:    protocol.TypeStateUpdate,
		Payload: r.idleView(),
	}
	for _, c := range r.connections {
		sess := c.session
		if sess == nil || sess.name == "" || sess.lobby != nil {
			continue
		}
		c.send(view)
	}
}

// broadcastLobby pushes every member of one lobby its personalized view.
func (r *Registry) broadcastLobby(l *Lobby) {
	for _, id := range l.order {
		r.sendStateTo(l.members[id].session)
	}
}
