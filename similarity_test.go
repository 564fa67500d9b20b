package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityScoreReflexive(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	for _, c := range cards {
		want := maxSimilarity
		if c.Element == "none" {
			want--
		}
		assert.Equal(t, want, similarityScore(c, c), "card %q", c.Name)
	}
}

func TestSimilarityScoreUnsetElementNeverMatches(t *testing.T) {
	a := Card{Name: "a", Type: "troop", Category: "melee", Element: "none", Family: "none"}
	b := Card{Name: "b", Type: "troop", Category: "melee", Element: "none", Family: "none"}

	// Type, category, and family match; the shared "none" element must not.
	assert.Equal(t, 3, similarityScore(a, b))
}

func TestFindDecoyNeverReturnsReal(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	rng := testRand()
	real := cards[0]

	for floor := 1; floor <= maxSimilarity; floor++ {
		for range 25 {
			decoy, err := findDecoy(real, floor, cards, rng)
			require.NoError(t, err)
			assert.NotEqual(t, real.Name, decoy.Name)
		}
	}
}

func TestFindDecoyFloorRelaxation(t *testing.T) {
	real := Card{Name: "real", Type: "troop", Category: "melee", Element: "fire", Family: "royal"}
	near := Card{Name: "near", Type: "troop", Category: "melee", Element: "none", Family: "none"}
	far := Card{Name: "far", Type: "spell", Category: "damage", Element: "none", Family: "none"}
	cards := []Card{real, near, far}

	// Nothing reaches 5, but "near" scores 2; the floor degrades one step
	// at a time until it qualifies.
	decoy, err := findDecoy(real, 5, cards, testRand())
	require.NoError(t, err)
	assert.Equal(t, "near", decoy.Name)
	assert.GreaterOrEqual(t, similarityScore(real, decoy), 2)
}

func TestFindDecoyFallsBackToRandom(t *testing.T) {
	real := Card{Name: "real", Type: "troop", Category: "melee", Element: "fire", Family: "royal"}
	other := Card{Name: "other", Type: "spell", Category: "damage", Element: "none", Family: "goblin"}
	cards := []Card{real, other}

	// "other" scores 0, so even floor 1 finds nothing; the fallback still
	// returns a card rather than failing.
	decoy, err := findDecoy(real, 1, cards, testRand())
	require.NoError(t, err)
	assert.Equal(t, "other", decoy.Name)
}

func TestFindDecoyEmptyRemainder(t *testing.T) {
	real := Card{Name: "real", Type: "troop", Category: "melee", Element: "none", Family: "none"}

	_, err := findDecoy(real, 1, []Card{real}, testRand())
	assert.ErrorIs(t, err, errEmptyCatalog)
}

func TestFindDecoyDeterministicForFixedSeed(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	real := cards[3]

	a, err := findDecoy(real, 2, cards, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	b, err := findDecoy(real, 2, cards, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	assert.Equal(t, a.Name, b.Name)
}
