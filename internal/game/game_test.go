package game

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSeats() []Seat {
	return []Seat{
		{PlayerID: "p1", Name: "Alice"},
		{PlayerID: "p2", Name: "Bob"},
	}
}

func view(t *testing.T, g *Game, playerID string) PlayerView {
	t.Helper()
	v, ok := g.StateFor(playerID).(PlayerView)
	require.True(t, ok)
	return v
}

func playCard(t *testing.T, g *Game, playerID string, card Card) {
	t.Helper()
	payload, err := json.Marshal(moveMessage{Type: "PlayCard", Card: card})
	require.NoError(t, err)
	g.HandleMessage(playerID, payload)
}

func TestNew_DealsWholeDeckEvenly(t *testing.T) {
	g := New(twoSeats())

	v1 := view(t, g, "p1")
	v2 := view(t, g, "p2")
	assert.Len(t, v1.Hand, 26)
	assert.Len(t, v2.Hand, 26)

	// No card appears twice across the two hands.
	seen := make(map[Card]bool)
	for _, c := range append(v1.Hand, v2.Hand...) {
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

func TestNew_RemainderStaysUndealt(t *testing.T) {
	seats := []Seat{
		{PlayerID: "p1", Name: "A"},
		{PlayerID: "p2", Name: "B"},
		{PlayerID: "p3", Name: "C"},
	}
	g := New(seats)

	// 52 cards over 3 seats: 17 each, one left over.
	for _, s := range seats {
		assert.Len(t, view(t, g, s.PlayerID).Hand, 17)
	}
}

func TestFirstSeatLeads(t *testing.T) {
	g := New(twoSeats())
	assert.True(t, view(t, g, "p1").YourTurn)
	assert.False(t, view(t, g, "p2").YourTurn)
}

func TestPlayCard_OutOfTurnRejected(t *testing.T) {
	g := New(twoSeats())

	card := view(t, g, "p2").Hand[0]
	playCard(t, g, "p2", card)

	v := view(t, g, "p2")
	assert.Equal(t, "not your turn", v.Error)
	assert.Len(t, v.Hand, 26)
	assert.Empty(t, v.Trick)
}

func TestPlayCard_NotInHandRejected(t *testing.T) {
	g := New(twoSeats())

	// Pick a card the opponent holds instead.
	card := view(t, g, "p2").Hand[0]
	playCard(t, g, "p1", card)

	v := view(t, g, "p1")
	assert.Contains(t, v.Error, "not in your hand")
	assert.Len(t, v.Hand, 26)
}

func TestTrick_HighestRankWins(t *testing.T) {
	g := New(twoSeats())

	c1 := view(t, g, "p1").Hand[0]
	playCard(t, g, "p1", c1)

	assert.Len(t, view(t, g, "p2").Trick, 1)
	assert.True(t, view(t, g, "p2").YourTurn)

	c2 := view(t, g, "p2").Hand[0]
	playCard(t, g, "p2", c2)

	winner := "p1"
	if c2.Beats(c1) {
		winner = "p2"
	}

	v := view(t, g, "p1")
	assert.Empty(t, v.Trick, "trick resolves once everyone has played")
	for _, s := range v.Seats {
		if s.PlayerID == winner {
			assert.Equal(t, 1, s.TricksWon)
			assert.True(t, s.Turn, "winner leads the next trick")
		} else {
			assert.Equal(t, 0, s.TricksWon)
		}
	}
}

func TestValidMoveClearsEarlierError(t *testing.T) {
	g := New(twoSeats())

	playCard(t, g, "p2", view(t, g, "p2").Hand[0])
	require.NotEmpty(t, view(t, g, "p2").Error)

	playCard(t, g, "p1", view(t, g, "p1").Hand[0])
	playCard(t, g, "p2", view(t, g, "p2").Hand[0])
	assert.Empty(t, view(t, g, "p2").Error)
}

func TestHandleMessage_UnknownMoveFlagged(t *testing.T) {
	g := New(twoSeats())

	g.HandleMessage("p1", json.RawMessage(`{"type":"Fold"}`))
	assert.Contains(t, view(t, g, "p1").Error, "unknown move")

	g.HandleMessage("p1", json.RawMessage(`garbage`))
	assert.Equal(t, "invalid move payload", view(t, g, "p1").Error)
}

func TestStateFor_HidesOtherHands(t *testing.T) {
	g := New(twoSeats())

	data, err := json.Marshal(g.StateFor("p1"))
	require.NoError(t, err)

	var decoded struct {
		Hand  []Card `json:"hand"`
		Seats []struct {
			PlayerID  string `json:"playerId"`
			CardsLeft int    `json:"cardsLeft"`
		} `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Hand, 26)
	assert.Len(t, decoded.Seats, 2)

	// The serialized view never names the opponent's cards.
	for _, c := range view(t, g, "p2").Hand {
		assert.NotContains(t, string(data), fmt.Sprintf(`{"suit":%d,"rank":%d}`, c.Suit, c.Rank))
	}
}

func TestGameEnds_WinnerHasMostTricks(t *testing.T) {
	g := New(twoSeats())

	// Play out the whole game, each side leading with its first card.
	for !view(t, g, "p1").Done {
		for _, id := range []string{"p1", "p2"} {
			if view(t, g, id).YourTurn {
				playCard(t, g, id, view(t, g, id).Hand[0])
			}
		}
	}

	v := view(t, g, "p1")
	assert.True(t, v.Done)
	assert.NotEmpty(t, v.Winner)

	total := 0
	for _, s := range v.Seats {
		assert.Zero(t, s.CardsLeft)
		total += s.TricksWon
	}
	assert.Equal(t, 26, total)
}
