package main

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
)

//go:embed cards.csv
var cardsCSV []byte

// Card is one immutable catalog entry. The attribute columns drive decoy
// similarity scoring; "none" marks an unset attribute.
type Card struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Element  string `json:"element,omitempty"`
	Family   string `json:"family,omitempty"`
	Imposter bool   `json:"isImposter,omitempty"`
}

// imposterCard is the sentinel dealt to imposters in generic mode.
// It is not part of the catalog.
func imposterCard() Card {
	return Card{Name: "IMPOSTER", Imposter: true}
}

var (
	cardsOnce   sync.Once
	cachedCards []Card
	cardsErr    error
)

// loadCards parses the embedded card table once per process and caches the
// result. On failure it returns an empty slice alongside the error; callers
// must treat an empty catalog as fatal for game start.
func loadCards() ([]Card, error) {
	cardsOnce.Do(func() {
		cachedCards, cardsErr = parseCards(cardsCSV)
	})
	return cachedCards, cardsErr
}

func parseCards(raw []byte) ([]Card, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = 5

	// Skip the header row
	if _, err := r.Read(); err != nil {
		return nil, err
	}

	var cards []Card

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		cards = append(cards, Card{
			Name:     rec[0],
			Type:     orNone(rec[1]),
			Category: orNone(rec[2]),
			Element:  orNone(rec[3]),
			Family:   orNone(rec[4]),
		})
	}

	if len(cards) == 0 {
		return nil, errEmptyCatalog
	}

	return cards, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

// cardNames returns a sorted copy of every catalog name, for display.
func cardNames(cards []Card) []string {
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		names = append(names, c.Name)
	}

	slices.Sort(names)

	return names
}

// randomCard draws uniformly from the catalog.
func randomCard(cards []Card, rng *rand.Rand) (Card, error) {
	if len(cards) == 0 {
		return Card{}, errEmptyCatalog
	}

	return cards[rng.IntN(len(cards))], nil
}
