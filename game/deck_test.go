package game

import (
	"sort"
	"testing"
)

func TestBaseDeckComposition(t *testing.T) {
	deck := BuildDeck(nil)
	if len(deck) != DeckSize() {
		t.Fatalf("deck has %d cards, want %d", len(deck), DeckSize())
	}
	if DeckSize() != 16 {
		t.Fatalf("base deck size = %d, want 16", DeckSize())
	}

	counts := map[string]int{}
	for _, id := range deck {
		counts[id]++
	}
	for _, c := range BaseCards() {
		if counts[c.ID] != c.Copies {
			t.Errorf("deck has %d copies of %s, want %d", counts[c.ID], c.ID, c.Copies)
		}
	}
}

func TestVariantSubstitution(t *testing.T) {
	deck := BuildDeck([]string{"assassin", "dowager"})

	counts := map[string]int{}
	for _, id := range deck {
		counts[id]++
	}
	if counts["assassin"] != 1 || counts["guard"] != 4 {
		t.Errorf("rank-1 split = %d assassin / %d guard, want 1/4", counts["assassin"], counts["guard"])
	}
	// A single-copy rank is fully replaced.
	if counts["dowager"] != 1 || counts["countess"] != 0 {
		t.Errorf("rank-7 split = %d dowager / %d countess, want 1/0", counts["dowager"], counts["countess"])
	}
	if len(deck) != 16 {
		t.Fatalf("substitution changed deck size to %d", len(deck))
	}
}

func TestVariantSubstitutionIgnoresJunk(t *testing.T) {
	deck := BuildDeck([]string{"nope", "guard", ""})
	if len(deck) != 16 {
		t.Fatalf("deck size = %d, want 16", len(deck))
	}
	for _, id := range deck {
		if _, ok := Lookup(id); !ok {
			t.Fatalf("unknown card %q in deck", id)
		}
	}
}

func TestSeededShuffleIsDeterministic(t *testing.T) {
	a := Shuffle(BuildDeck(nil), "table-seed")
	b := Shuffle(BuildDeck(nil), "table-seed")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %s vs %s", i, a[i], b[i])
		}
	}

	c := Shuffle(BuildDeck(nil), "other-seed")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced an identical ordering")
	}
}

func TestShufflePreservesMultiset(t *testing.T) {
	for _, seed := range []string{"", "x"} {
		got := append([]string{}, Shuffle(BuildDeck(nil), seed)...)
		want := BuildDeck(nil)
		sort.Strings(got)
		sort.Strings(want)
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("seed %q: shuffle lost or duplicated cards", seed)
			}
		}
	}
}
