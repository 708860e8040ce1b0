// Package game is a minimal trick-taking engine used as the default
// match implementation behind the server's engine interface. The whole
// shuffled deck is dealt round-robin; players play one card per trick in
// seat order and the highest rank takes the trick.
package game

import (
	"encoding/json"
	"fmt"
)

// Seat pins a player's position in turn order.
type Seat struct {
	PlayerID string
	Name     string
}

// TrickPlay is one face-up card in the current trick.
type TrickPlay struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}

type Game struct {
	seats  []Seat
	hands  map[string][]Card
	trick  []TrickPlay
	turn   int
	tricks map[string]int

	// last rejected move per player, surfaced in that player's view
	moveErrors map[string]string
}

// New deals a fresh game for the given ordered seats. The deck is dealt
// evenly; a remainder smaller than one full round stays undealt.
func New(seats []Seat) *Game {
	g := &Game{
		seats:      seats,
		hands:      make(map[string][]Card),
		tricks:     make(map[string]int),
		moveErrors: make(map[string]string),
	}
	deck := NewDeck()
	deck.Shuffle()
	for deck.Count() >= len(seats) {
		for _, s := range seats {
			g.hands[s.PlayerID] = append(g.hands[s.PlayerID], deck.Draw(1)[0])
		}
	}
	return g
}

type moveMessage struct {
	Type string `json:"type"`
	Card Card   `json:"card"`
}

// HandleMessage applies one opaque in-match message from a player.
// Invalid moves never mutate the table; the rejection is recorded and
// shown in that player's next view.
func (g *Game) HandleMessage(fromPlayerID string, payload json.RawMessage) {
	var msg moveMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		g.moveErrors[fromPlayerID] = "invalid move payload"
		return
	}
	if msg.Type != "PlayCard" {
		g.moveErrors[fromPlayerID] = fmt.Sprintf("unknown move %q", msg.Type)
		return
	}
	g.playCard(fromPlayerID, msg.Card)
}

func (g *Game) playCard(playerID string, card Card) {
	if g.seatIndex(playerID) != g.turn {
		g.moveErrors[playerID] = "not your turn"
		return
	}
	hand := g.hands[playerID]
	at := -1
	for i, c := range hand {
		if c == card {
			at = i
			break
		}
	}
	if at < 0 {
		g.moveErrors[playerID] = fmt.Sprintf("%s is not in your hand", card)
		return
	}

	g.hands[playerID] = append(hand[:at], hand[at+1:]...)
	g.trick = append(g.trick, TrickPlay{PlayerID: playerID, Card: card})
	delete(g.moveErrors, playerID)

	if len(g.trick) == len(g.seats) {
		winner := g.trickWinner()
		g.tricks[winner]++
		g.trick = nil
		g.turn = g.seatIndex(winner)
		return
	}
	g.turn = (g.turn + 1) % len(g.seats)
}

// trickWinner picks the highest-ranked play; ties go to the earlier one.
func (g *Game) trickWinner() string {
	best := g.trick[0]
	for _, play := range g.trick[1:] {
		if play.Card.Beats(best.Card) {
			best = play
		}
	}
	return best.PlayerID
}

func (g *Game) seatIndex(playerID string) int {
	for i, s := range g.seats {
		if s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (g *Game) done() bool {
	for _, hand := range g.hands {
		if len(hand) > 0 {
			return false
		}
	}
	return true
}

// SeatView is what any player sees of a seat: never the cards, only the
// counts.
type SeatView struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	CardsLeft int    `json:"cardsLeft"`
	TricksWon int    `json:"tricksWon"`
	Turn      bool   `json:"turn"`
}

// PlayerView is the personalized projection of the table: the viewer's
// own hand plus public information about everyone.
type PlayerView struct {
	Hand     []Card      `json:"hand"`
	Trick    []TrickPlay `json:"trick"`
	Seats    []SeatView  `json:"seats"`
	YourTurn bool        `json:"yourTurn"`
	Done     bool        `json:"done"`
	Winner   string      `json:"winner,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// StateFor builds the view for one player.
func (g *Game) StateFor(playerID string) any {
	seats := make([]SeatView, len(g.seats))
	for i, s := range g.seats {
		seats[i] = SeatView{
			PlayerID:  s.PlayerID,
			Name:      s.Name,
			CardsLeft: len(g.hands[s.PlayerID]),
			TricksWon: g.tricks[s.PlayerID],
			Turn:      i == g.turn,
		}
	}

	view := PlayerView{
		Hand:     append([]Card(nil), g.hands[playerID]...),
		Trick:    append([]TrickPlay(nil), g.trick...),
		Seats:    seats,
		YourTurn: g.seatIndex(playerID) == g.turn,
		Done:     g.done(),
		Error:    g.moveErrors[playerID],
	}
	if view.Done {
		view.Winner = g.overallWinner()
	}
	return view
}

func (g *Game) overallWinner() string {
	winner := ""
	best := -1
	for _, s := range g.seats {
		if g.tricks[s.PlayerID] > best {
			best = g.tricks[s.PlayerID]
			winner = s.PlayerID
		}
	}
	return winner
}
