package main

import (
	"math/rand/v2"
)

// maxSimilarity is the number of attributes compared by similarityScore.
const maxSimilarity = 4

// similarityScore counts matching attributes between two cards. An element
// of "none" never counts as a match, so sparsely attributed cards don't
// score as similar just for both lacking an element.
func similarityScore(a, b Card) int {
	matches := 0

	if a.Type == b.Type {
		matches++
	}
	if a.Category == b.Category {
		matches++
	}
	if a.Element == b.Element && a.Element != "none" {
		matches++
	}
	if a.Family == b.Family {
		matches++
	}

	return matches
}

// findDecoy picks a card similar to real, scoring at least floor. When no
// candidate qualifies the floor is relaxed one step at a time; at floor 1
// with still no candidates, any card other than real is returned. Selection
// among qualifying candidates is uniform, so results are reproducible for a
// fixed rng.
func findDecoy(real Card, floor int, cards []Card, rng *rand.Rand) (Card, error) {
	others := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.Name != real.Name {
			others = append(others, c)
		}
	}

	if len(others) == 0 {
		return Card{}, errEmptyCatalog
	}

	for ; floor >= 1; floor-- {
		var candidates []Card
		for _, c := range others {
			if similarityScore(real, c) >= floor {
				candidates = append(candidates, c)
			}
		}

		if len(candidates) > 0 {
			return candidates[rng.IntN(len(candidates))], nil
		}
	}

	// Nothing scored at all; fall back to any other card.
	return others[rng.IntN(len(others))], nil
}
