package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardroom-server/internal/protocol"
)

// Registry holds the process-wide indices: open lobbies by name, playing
// lobbies, and live connections. Every mutation of session, lobby, or
// index state runs to completion under mu, so two racing CreateLobby
// calls for the same name serialize; only queued socket writes happen
// outside it. An open lobby lives in exactly one index at a time.
type Registry struct {
	mu          sync.Mutex
	openLobbies map[string]*Lobby
	playing     map[*Lobby]struct{}
	connections map[uint64]*Connection

	minPlayers int
	newEngine  EngineFactory
	logger     *zap.SugaredLogger
}

func NewRegistry(minPlayers int, factory EngineFactory, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		openLobbies: make(map[string]*Lobby),
		playing:     make(map[*Lobby]struct{}),
		connections: make(map[uint64]*Connection),
		minPlayers:  minPlayers,
		newEngine:   factory,
		logger:      logger,
	}
}

// AddConnection registers a fresh transport channel and returns its
// Connection. No session exists yet; only Hello is legal until one does.
func (r *Registry) AddConnection(w wire) *Connection {
	c := newConnection(w, r.logger)
	r.mu.Lock()
	r.connections[c.id] = c
	r.mu.Unlock()
	return c
}

// ConnectionClosed tears down a connection whose transport ended. A
// session still bound here was not resumed anywhere, so it leaves its
// lobby and is discarded along with the connection.
func (r *Registry) ConnectionClosed(c *Connection) {
	r.mu.Lock()
	delete(r.connections, c.id)
	sess := c.session
	if sess != nil {
		c.session = nil
		sess.conn = nil
		r.leaveLobby(sess)
		r.logger.Infow("session ended", "player", sess.playerID, "connection", c.id)
	}
	r.mu.Unlock()

	c.shutdown(websocket.StatusNormalClosure, "connection closed")
}

// Counts reports the index sizes for health reporting.
func (r *Registry) Counts() (connections, open, playing int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections), len(r.openLobbies), len(r.playing)
}

// DrainConnections empties the connection index and returns what it
// held, for shutdown teardown.
func (r *Registry) DrainConnections() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	clear(r.connections)
	return conns
}

// HandleMessage routes one decoded inbound message. Per-state legality
// is enforced here; anything illegal for the session's current state is
// logged and ignored without mutating state or dropping the connection.
func (r *Registry) HandleMessage(c *Connection, msg protocol.ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Type == protocol.TypePing {
		c.send(protocol.ServerMessage{Type: protocol.TypePong, Payload: struct{}{}})
		return
	}

	if c.session == nil {
		if msg.Type != protocol.TypeHello {
			r.rejectMessage(c, msg.Type, "say Hello first")
			return
		}
		r.handleHello(c, msg.Payload)
		return
	}

	sess := c.session
	if sess.name == "" && msg.Type != protocol.TypeSetName {
		r.rejectMessage(c, msg.Type, "set a name first")
		return
	}

	switch msg.Type {
	case protocol.TypeSetName:
		r.handleSetName(sess, msg.Payload)
	case protocol.TypeCreateLobby:
		r.handleCreateLobby(sess, msg.Payload)
	case protocol.TypeJoinLobby:
		r.handleJoinLobby(sess, msg.Payload)
	case protocol.TypeReadyToPlay:
		r.handleReadyToPlay(sess, msg.Payload)
	case protocol.TypeLeaveLobby:
		r.handleLeaveLobby(sess)
	case protocol.TypeGameMessage:
		r.handleGameMessage(sess, msg.Payload)
	default:
		// Hello on an already-bound connection lands here.
		r.rejectMessage(c, msg.Type, "not valid for current state")
	}
}

func (r *Registry) handleHello(c *Connection, payload json.RawMessage) {
	var req protocol.HelloPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			r.logger.Infow("bad Hello payload", "connection", c.id, "err", err)
			c.send(errorMessage("PROTOCOL_ERROR: invalid Hello payload"))
			return
		}
	}

	var sess *Session
	if req.ReconnectSecret != "" {
		sess = r.resumeSession(c, req.ReconnectSecret)
	}
	if sess == nil {
		sess = newSession()
		r.logger.Infow("new session", "player", sess.playerID, "connection", c.id)
	}

	sess.conn = c
	c.session = sess

	c.send(protocol.ServerMessage{
		Type: protocol.TypeHelloResponse,
		Payload: protocol.HelloResponsePayload{
			PlayerID:        sess.playerID,
			ReconnectSecret: sess.reconnectSecret,
		},
	})
	r.sendStateTo(sess)
}

// resumeSession looks for a live connection whose bound session holds
// the presented secret. A miss is not an error: the caller mints a fresh
// identity instead, so a stale or garbage secret degrades into a clean
// first connect rather than a rejection.
func (r *Registry) resumeSession(newConn *Connection, secret string) *Session {
	for _, old := range r.connections {
		if old == newConn || old.session == nil || old.session.reconnectSecret != secret {
			continue
		}
		sess := old.session
		// Clear the back-reference before closing the transport so the
		// close path cannot mistake this takeover for a real departure
		// and run lobby-leave logic.
		old.session = nil
		delete(r.connections, old.id)
		go old.shutdown(websocket.StatusNormalClosure, "session resumed elsewhere")

		r.logger.Infow("session resumed",
			"player", sess.playerID, "from", old.id, "to", newConn.id)
		return sess
	}
	return nil
}

func (r *Registry) handleSetName(sess *Session, payload json.RawMessage) {
	if sess.name != "" {
		r.rejectMessage(sess.conn, protocol.TypeSetName, "name already set")
		return
	}
	var req protocol.SetNamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.conn.send(errorMessage("PROTOCOL_ERROR: invalid SetName payload"))
		return
	}
	if err := ValidateDisplayName(req.Name); err != nil {
		sess.conn.send(errorMessage(err.Error()))
		return
	}

	sess.name = req.Name
	r.logger.Infow("name set", "player", sess.playerID, "name", sess.name)
	r.sendStateTo(sess)
}

func (r *Registry) handleCreateLobby(sess *Session, payload json.RawMessage) {
	if sess.lobby != nil {
		r.rejectMessage(sess.conn, protocol.TypeCreateLobby, "already in a lobby")
		return
	}
	var req protocol.CreateLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.conn.send(errorMessage("PROTOCOL_ERROR: invalid CreateLobby payload"))
		return
	}
	name := NormalizeLobbyName(req.LobbyName)
	if err := ValidateLobbyName(name); err != nil {
		sess.conn.send(errorMessage(err.Error()))
		return
	}
	if _, exists := r.openLobbies[name]; exists {
		r.logger.Infow("lobby name taken", "lobby", name, "player", sess.playerID)
		sess.conn.send(errorMessage(fmt.Sprintf("LOBBY_EXISTS: %q is already open", name)))
		return
	}

	l := newLobby(name)
	l.addMember(sess)
	r.openLobbies[name] = l
	r.logger.Infow("lobby created", "lobby", name, "player", sess.playerID)

	r.broadcastIdle()
	r.broadcastLobby(l)
}

func (r *Registry) handleJoinLobby(sess *Session, payload json.RawMessage) {
	if sess.lobby != nil {
		r.rejectMessage(sess.conn, protocol.TypeJoinLobby, "already in a lobby")
		return
	}
	var req protocol.JoinLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.conn.send(errorMessage("PROTOCOL_ERROR: invalid JoinLobby payload"))
		return
	}
	name := NormalizeLobbyName(req.LobbyName)
	l, exists := r.openLobbies[name]
	if !exists {
		r.logger.Infow("join miss", "lobby", name, "player", sess.playerID)
		sess.conn.send(errorMessage(fmt.Sprintf("LOBBY_NOT_FOUND: no open lobby named %q", name)))
		return
	}

	l.addMember(sess)
	r.logger.Infow("lobby joined", "lobby", name, "player", sess.playerID)
	r.broadcastLobby(l)
}

func (r *Registry) handleReadyToPlay(sess *Session, payload json.RawMessage) {
	l := sess.lobby
	if l == nil || l.phase != phaseInLobby {
		r.rejectMessage(sess.conn, protocol.TypeReadyToPlay, "no lobby in pre-game phase")
		return
	}
	var req protocol.ReadyToPlayPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.conn.send(errorMessage("PROTOCOL_ERROR: invalid ReadyToPlay payload"))
		return
	}

	l.members[sess.playerID].ready = req.Ready

	// Quorum: minimum headcount and every member ready, re-evaluated on
	// each flip.
	if req.Ready && l.memberCount() >= r.minPlayers && l.allReady() {
		delete(r.openLobbies, l.name)
		r.playing[l] = struct{}{}
		l.startGame(r.newEngine)
		r.logger.Infow("game started", "lobby", l.name, "players", l.memberCount())
		r.broadcastIdle()
	}
	r.broadcastLobby(l)
}

func (r *Registry) handleLeaveLobby(sess *Session) {
	if sess.lobby == nil {
		r.rejectMessage(sess.conn, protocol.TypeLeaveLobby, "not in a lobby")
		return
	}
	name := sess.lobby.name
	r.leaveLobby(sess)
	r.logger.Infow("lobby left", "lobby", name, "player", sess.playerID)
	r.sendStateTo(sess)
}

func (r *Registry) handleGameMessage(sess *Session, payload json.RawMessage) {
	l := sess.lobby
	if l == nil || l.phase != phaseInGame {
		r.rejectMessage(sess.conn, protocol.TypeGameMessage, "no game in progress")
		return
	}

	if protocol.IsLeaveGame(payload) {
		r.reopenLobby(l, fmt.Sprintf("%s left the game", sess.name))
		r.leaveLobby(sess)
		r.logger.Infow("game left", "lobby", l.name, "player", sess.playerID)
		r.sendStateTo(sess)
		return
	}

	l.engine.HandleMessage(sess.playerID, payload)
	r.broadcastLobby(l)
}

// leaveLobby removes a session from its lobby and runs the fallout:
// closing an emptied lobby, closing a live game left with a lone player,
// or rebroadcasting to whoever remains.
func (r *Registry) leaveLobby(sess *Session) {
	l := sess.lobby
	if l == nil {
		return
	}
	l.removeMember(sess)

	if l.memberCount() == 0 {
		r.closeLobby(l)
		return
	}
	// A live game can shrink its roster, but one player alone is no
	// longer a match; the survivor goes back to the idle view.
	if l.phase == phaseInGame && l.memberCount() == 1 {
		r.closeLobby(l)
		return
	}
	r.broadcastLobby(l)
}

// closeLobby removes a lobby from whichever index holds it and detaches
// any remaining members, pushing each of them a fresh idle view.
func (r *Registry) closeLobby(l *Lobby) {
	wasOpen := false
	if r.openLobbies[l.name] == l {
		delete(r.openLobbies, l.name)
		wasOpen = true
	}
	delete(r.playing, l)

	remaining := make([]*Session, 0, len(l.members))
	for _, m := range l.members {
		remaining = append(remaining, m.session)
	}
	clear(l.members)
	l.order = nil
	for _, s := range remaining {
		s.lobby = nil
	}

	r.logger.Infow("lobby closed", "lobby", l.name)
	if wasOpen {
		r.broadcastIdle()
	}
	for _, s := range remaining {
		r.sendStateTo(s)
	}
}

// reopenLobby returns a playing lobby to the open index after a match
// ends early. If a newer lobby claimed the name in the meantime, the
// reverted lobby comes back under a suffixed name so the open index
// stays collision-free.
func (r *Registry) reopenLobby(l *Lobby, notice string) {
	delete(r.playing, l)
	l.endGame(notice)

	if _, taken := r.openLobbies[l.name]; taken {
		fresh := l.name + "-" + uuid.NewString()[:4]
		r.logger.Warnw("lobby name reclaimed during game, renaming",
			"old", l.name, "new", fresh)
		l.name = fresh
	}
	r.openLobbies[l.name] = l
	r.broadcastIdle()
}

// rejectMessage logs a syntactically valid message that is illegal for
// the connection's current state. Nothing mutates and the connection
// stays open.
func (r *Registry) rejectMessage(c *Connection, msgType, why string) {
	r.logger.Infow("message rejected", "connection", c.id, "type", msgType, "reason", why)
	c.send(errorMessage("INVALID_STATE: " + why))
}

func errorMessage(msg string) protocol.ServerMessage {
	return protocol.ServerMessage{
		Type:    protocol.TypeError,
		Payload: protocol.ErrorPayload{Message: msg},
	}
}
