package server

type lobbyPhase int

const (
	phaseInLobby lobbyPhase = iota
	phaseInGame
)

type member struct {
	session *Session
	ready   bool
}

// Lobby is a named group of sessions moving from pre-game coordination
// (InLobby) to an active match (InGame). While open it is joinable and
// indexed by name; once playing, the name is free for a new lobby.
type Lobby struct {
	name    string
	members map[string]*member // playerID -> membership
	order   []string           // join order; seats the engine

	phase  lobbyPhase
	notice string // last InLobby transition message, if any
	engine Engine // non-nil iff phase == phaseInGame
}

func newLobby(name string) *Lobby {
	return &Lobby{
		name:    name,
		members: make(map[string]*member),
	}
}

func (l *Lobby) addMember(s *Session) {
	l.members[s.playerID] = &member{session: s}
	l.order = append(l.order, s.playerID)
	s.lobby = l
}

func (l *Lobby) removeMember(s *Session) {
	delete(l.members, s.playerID)
	for i, id := range l.order {
		if id == s.playerID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	s.lobby = nil
}

func (l *Lobby) memberCount() int {
	return len(l.members)
}

func (l *Lobby) allReady() bool {
	for _, m := range l.members {
		if !m.ready {
			return false
		}
	}
	return len(l.members) > 0
}

// seats returns the ordered (playerID, name) list a new engine is built
// from.
func (l *Lobby) seats() []EngineSeat {
	seats := make([]EngineSeat, 0, len(l.order))
	for _, id := range l.order {
		seats = append(seats, EngineSeat{PlayerID: id, Name: l.members[id].session.name})
	}
	return seats
}

// startGame flips the lobby into the playing phase with a fresh engine.
func (l *Lobby) startGame(factory EngineFactory) {
	l.engine = factory(l.seats())
	l.phase = phaseInGame
	l.notice = ""
}

// endGame returns the lobby to the pre-game phase. Ready flags reset so
// the next ready-check starts from scratch.
func (l *Lobby) endGame(notice string) {
	l.engine = nil
	l.phase = phaseInLobby
	l.notice = notice
	for _, m := range l.members {
		m.ready = false
	}
}
