package game

import (
	"fmt"
	"math/rand"
)

type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitString = map[Suit]string{
	Hearts:   "Hearts",
	Diamonds: "Diamonds",
	Clubs:    "Clubs",
	Spades:   "Spades",
}

func (s Suit) String() string {
	return suitString[s]
}

// Rank ordering doubles as trick strength: Two is lowest, Ace highest.
type Rank int

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var rankString = map[Rank]string{
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Seven: "Seven",
	Eight: "Eight",
	Nine:  "Nine",
	Ten:   "Ten",
	Jack:  "Jack",
	Queen: "Queen",
	King:  "King",
	Ace:   "Ace",
}

func (r Rank) String() string {
	return rankString[r]
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank.String(), c.Suit.String())
}

// Beats reports whether c outranks other in a trick. Suits carry no
// weight; equal ranks do not beat each other, so the earlier play wins.
func (c Card) Beats(other Card) bool {
	return c.Rank > other.Rank
}

type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck builds a single ordered 52-card deck.
func NewDeck() *Deck {
	cards := make([]Card, 0, 52)
	for _, suit := range []Suit{Hearts, Diamonds, Clubs, Spades} {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, Card{suit, rank})
		}
	}
	return &Deck{cards}
}

func (d *Deck) Count() int {
	return len(d.Cards)
}

// Draw removes and returns the top n cards.
func (d *Deck) Draw(n int) (cards []Card) {
	for i := 0; i < n; i++ {
		card := d.Cards[len(d.Cards)-1]
		cards = append(cards, card)
		d.Cards = d.Cards[:len(d.Cards)-1]
	}
	return
}

func (d *Deck) Shuffle() {
	rand.Shuffle(d.Count(), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
