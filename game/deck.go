package game

import (
	"crypto/rand"
	"hash/fnv"
	"math/big"
)

// BuildDeck constructs the ordered multiset of card ids for a round.
// substitutions lists variant card ids to swap in: for each one, a single
// physical copy of its base card is replaced (which fully replaces base cards
// that only have one copy). Unknown or non-variant ids are ignored.
func BuildDeck(substitutions []string) []string {
	deck := make([]string, 0, DeckSize())
	for _, c := range BaseCards() {
		for i := 0; i < c.Copies; i++ {
			deck = append(deck, c.ID)
		}
	}

	for _, id := range substitutions {
		v, ok := Lookup(id)
		if !ok || v.VariantOf == "" {
			continue
		}
		for i, d := range deck {
			if d == v.VariantOf {
				deck[i] = v.ID
				break
			}
		}
	}
	return deck
}

// Shuffle performs a Fisher–Yates shuffle in place and returns the deck.
// With an empty seed it draws from crypto/rand. A non-empty seed switches to
// a deterministic LCG keyed by an FNV hash of the seed string; callers must
// only pass a seed in test/development mode.
func Shuffle(deck []string, seed string) []string {
	if seed == "" {
		for i := len(deck) - 1; i > 0; i-- {
			j := cryptoIntn(i + 1)
			deck[i], deck[j] = deck[j], deck[i]
		}
		return deck
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	state := h.Sum64()
	next := func(n int) int {
		// Numerical Recipes LCG constants.
		state = state*6364136223846793005 + 1442695040888963407
		return int((state >> 33) % uint64(n))
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := next(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func cryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// refusing to deal is better than dealing a predictable deck.
		panic(err)
	}
	return int(v.Int64())
}
