package game

// EffectType is the closed set of card effects. The resolver switches over
// this exhaustively; adding an effect means touching that switch.
type EffectType int

const (
	EffectGuessEliminate EffectType = iota
	EffectPeek
	EffectCompare
	EffectShield
	EffectForceDiscard
	EffectSwapHands
	EffectConditionalDiscard
	EffectSelfEliminate
)

type Targeting int

const (
	TargetNone Targeting = iota
	TargetSelf
	TargetOpponent
	TargetAny
)

// Card is one catalog entry: pure data, no behavior.
//
// MustPlayOverRanks / MustPlayRankSum encode the forced-play rules
// declaratively so that variant cards sharing a rank are covered too:
// a card carrying MustPlayOverRanks blocks playing any held card of those
// ranks while it stays in hand, and MustPlayRankSum forces it out whenever
// it is the highest card held and the hand's rank total reaches the sum.
type Card struct {
	ID                   string
	Name                 string
	Rank                 int
	Copies               int
	Effect               EffectType
	Targeting            Targeting
	RequiresGuess        bool
	CannotTargetShielded bool
	MustPlayOverRanks    []int
	MustPlayRankSum      int
	VariantOf            string // base card id this entry may substitute for
}

// MinGuessRank / MaxGuessRank bound the numeric guess on rank-1 plays.
// Guessing 1 is disallowed.
const (
	MinGuessRank = 2
	MaxGuessRank = 8
)

var catalog = []Card{
	{ID: "guard", Name: "Guard", Rank: 1, Copies: 5, Effect: EffectGuessEliminate, Targeting: TargetOpponent, RequiresGuess: true, CannotTargetShielded: true},
	{ID: "priest", Name: "Priest", Rank: 2, Copies: 2, Effect: EffectPeek, Targeting: TargetOpponent, CannotTargetShielded: true},
	{ID: "baron", Name: "Baron", Rank: 3, Copies: 2, Effect: EffectCompare, Targeting: TargetOpponent, CannotTargetShielded: true},
	{ID: "handmaid", Name: "Handmaid", Rank: 4, Copies: 2, Effect: EffectShield, Targeting: TargetSelf},
	{ID: "prince", Name: "Prince", Rank: 5, Copies: 2, Effect: EffectForceDiscard, Targeting: TargetAny, CannotTargetShielded: true},
	{ID: "king", Name: "King", Rank: 6, Copies: 1, Effect: EffectSwapHands, Targeting: TargetAny, CannotTargetShielded: true},
	{ID: "countess", Name: "Countess", Rank: 7, Copies: 1, Effect: EffectConditionalDiscard, Targeting: TargetNone, MustPlayOverRanks: []int{5, 6}, MustPlayRankSum: 12},
	{ID: "princess", Name: "Princess", Rank: 8, Copies: 1, Effect: EffectSelfEliminate, Targeting: TargetSelf},

	// Variant substitutions: same rank and effect as their base card, swapped
	// in one physical copy at a time by the deck builder.
	{ID: "assassin", Name: "Assassin", Rank: 1, Copies: 1, Effect: EffectGuessEliminate, Targeting: TargetOpponent, RequiresGuess: true, CannotTargetShielded: true, VariantOf: "guard"},
	{ID: "baroness", Name: "Baroness", Rank: 3, Copies: 1, Effect: EffectCompare, Targeting: TargetOpponent, CannotTargetShielded: true, VariantOf: "baron"},
	{ID: "dowager", Name: "Dowager Queen", Rank: 7, Copies: 1, Effect: EffectConditionalDiscard, Targeting: TargetNone, MustPlayOverRanks: []int{5, 6}, MustPlayRankSum: 12, VariantOf: "countess"},
}

var byID = func() map[string]Card {
	m := make(map[string]Card, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// Lookup returns the catalog entry for a card id.
func Lookup(id string) (Card, bool) {
	c, ok := byID[id]
	return c, ok
}

// MustLookup is for card ids that came out of our own persisted state, where
// an unknown id means corrupted data, not user error.
func MustLookup(id string) Card {
	c, ok := byID[id]
	if !ok {
		panic("unknown card id: " + id)
	}
	return c
}

// BaseCards returns the non-variant catalog entries in rank order.
func BaseCards() []Card {
	out := make([]Card, 0, len(catalog))
	for _, c := range catalog {
		if c.VariantOf == "" {
			out = append(out, c)
		}
	}
	return out
}

// Variants returns the variant entries keyed by the base card id they replace.
func Variants() map[string]Card {
	out := map[string]Card{}
	for _, c := range catalog {
		if c.VariantOf != "" {
			out[c.VariantOf] = c
		}
	}
	return out
}

// DeckSize is the physical card count of a round's deck, which variant
// substitution never changes.
func DeckSize() int {
	n := 0
	for _, c := range BaseCards() {
		n += c.Copies
	}
	return n
}
