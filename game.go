package main

import (
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

// SeatSummary is one row of the end-of-game discussion recap.
type SeatSummary struct {
	SeatIndex int    `json:"playerIndex"`
	SeatName  string `json:"playerName"`
	Words     string `json:"words"`
}

const (
	phaseDiscussion = "discussion"
	phaseReveal     = "reveal"
)

// Every method below assumes the caller holds l.mu; the transport layer
// applies one inbound event at a time per lobby.

func (l *Lobby) seatIndexLocked(id string) int {
	for i, s := range l.Seats {
		if s.ID == id {
			return i
		}
	}

	return -1
}

func (l *Lobby) anyConnectedLocked() bool {
	for _, s := range l.Seats {
		if s.Connected {
			return true
		}
	}

	return false
}

// start computes the full assignment for a new game: the one-time reveal
// order, an independent turn order per round, the sorted imposter set, the
// shared real card, and each imposter's card (a decoy in decoy mode, the
// sentinel otherwise). Each step draws from rng in a fixed sequence, so a
// seeded generator reproduces the whole assignment.
func (l *Lobby) start(cards []Card, rng *rand.Rand) error {
	n := len(l.Seats)

	if n < 3 {
		return errTooFewSeats
	}
	if l.Settings.NumImposters >= n {
		return errBadImposterCount
	}
	if len(cards) == 0 {
		return errEmptyCatalog
	}

	l.RevealOrder = rng.Perm(n)

	l.DiscussionOrders = make([][]int, l.Settings.NumRounds)
	for i := range l.DiscussionOrders {
		l.DiscussionOrders[i] = rng.Perm(n)
	}

	l.Imposters = rng.Perm(n)[:l.Settings.NumImposters]
	slices.Sort(l.Imposters)

	real, err := randomCard(cards, rng)
	if err != nil {
		return err
	}
	l.RealCard = &real

	l.SeatCards = make([]Card, n)
	for i := range l.SeatCards {
		l.SeatCards[i] = real
	}

	l.DecoyCard = nil
	if l.Settings.ImposterMode == modeDecoy {
		decoy, err := findDecoy(real, l.Settings.SimilarityFloor, cards, rng)
		if err != nil {
			return err
		}
		l.DecoyCard = &decoy

		for _, i := range l.Imposters {
			l.SeatCards[i] = decoy
		}
	} else {
		for _, i := range l.Imposters {
			l.SeatCards[i] = imposterCard()
		}
	}

	l.Discussion = make([][]string, l.Settings.NumRounds)
	for i := range l.Discussion {
		l.Discussion[i] = make([]string, n)
	}

	l.State = statePlaying
	l.CurrentRound = 0
	l.CurrentTurnIndex = 0

	return nil
}

// currentTurnSeat returns the seat index holding the turn.
func (l *Lobby) currentTurnSeat() int {
	return l.DiscussionOrders[l.CurrentRound][l.CurrentTurnIndex]
}

func (l *Lobby) isTurn(seat int) bool {
	return l.currentTurnSeat() == seat
}

// submitTurn records a seat's word for a round. It deliberately does not
// check turn ownership: that check belongs to the transport boundary, and
// duplicating it here would hide protocol bugs instead of surfacing them.
func (l *Lobby) submitTurn(seat, round int, text string, now time.Time) {
	l.Discussion[round][seat] = text
	l.LastActivity = now
}

// advanceTurn moves to the next position in the current round's order.
// When the position wraps, the round is complete and there is no next seat.
func (l *Lobby) advanceTurn() (nextSeat int, roundComplete bool) {
	l.CurrentTurnIndex++

	if l.CurrentTurnIndex >= len(l.Seats) {
		l.CurrentTurnIndex = 0

		return -1, true
	}

	return l.currentTurnSeat(), false
}

// advanceRound moves to the next discussion round, or ends the game after
// the final one.
func (l *Lobby) advanceRound() string {
	next := l.CurrentRound + 1

	if next < l.Settings.NumRounds {
		l.CurrentRound = next
		l.CurrentTurnIndex = 0

		return phaseDiscussion
	}

	l.State = stateEnded

	return phaseReveal
}

// reset returns the lobby to the waiting state for another game. Seats and
// settings survive; every piece of game data is cleared.
func (l *Lobby) reset(now time.Time) {
	l.State = stateWaiting
	l.CurrentRound = 0
	l.CurrentTurnIndex = 0
	l.SeatCards = nil
	l.RevealOrder = nil
	l.Imposters = nil
	l.RealCard = nil
	l.DecoyCard = nil
	l.DiscussionOrders = nil
	l.Discussion = nil
	l.Chat = nil
	l.LastActivity = now
}

// addChat appends a message for a seated identity; nil if the identity has
// no seat here.
func (l *Lobby) addChat(id, text string, now time.Time) *ChatMessage {
	i := l.seatIndexLocked(id)
	if i < 0 {
		return nil
	}

	msg := ChatMessage{
		ID:         uuid.NewString(),
		PlayerID:   id,
		PlayerName: l.Seats[i].Name,
		Message:    text,
		Timestamp:  now.UnixMilli(),
	}

	l.Chat = append(l.Chat, msg)
	l.LastActivity = now

	return &msg
}

// discussionSummary joins each seat's non-empty words across all rounds,
// listed in the first round's turn order (reveal order if the game never
// had rounds).
func (l *Lobby) discussionSummary() []SeatSummary {
	order := l.RevealOrder
	if len(l.DiscussionOrders) > 0 {
		order = l.DiscussionOrders[0]
	}

	out := make([]SeatSummary, 0, len(l.Seats))

	for _, seat := range order {
		var words []string
		for _, round := range l.Discussion {
			if w := strings.TrimSpace(round[seat]); w != "" {
				words = append(words, w)
			}
		}

		out = append(out, SeatSummary{
			SeatIndex: seat,
			SeatName:  l.Seats[seat].Name,
			Words:     strings.Join(words, ", "),
		})
	}

	return out
}
