package game

import "testing"

func TestCatalog(t *testing.T) {
	if len(Catalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(Catalog))
	}
	for _, c := range Catalog {
		if c.MinAttack > c.MaxAttack {
			t.Errorf("card %s: min %d > max %d", c.Name, c.MinAttack, c.MaxAttack)
		}
		if c.Defense < 1 {
			t.Errorf("card %s: defense attempts = %d, want >= 1", c.Name, c.Defense)
		}
	}
}

func TestDefaultOrderCardAt(t *testing.T) {
	o := DefaultOrder()
	for round := 1; round <= Rounds; round++ {
		if got, want := o.CardAt(round).Name, Catalog[round-1].Name; got != want {
			t.Errorf("round %d: card = %s, want %s", round, got, want)
		}
	}
}

func TestCardIndexCaseInsensitive(t *testing.T) {
	idx, ok := CardIndex("b")
	if !ok || idx != 1 {
		t.Fatalf("CardIndex(b) = %d, %v; want 1, true", idx, ok)
	}
	if _, ok := CardIndex("Z"); ok {
		t.Fatal("CardIndex(Z) found a card")
	}
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("b c a")
	if err != nil {
		t.Fatalf("ParseOrder(b c a): %v", err)
	}
	if o != (Order{1, 2, 0}) {
		t.Fatalf("ParseOrder(b c a) = %v, want [1 2 0]", o)
	}

	bad := []string{
		"a b",     // too few
		"a b c d", // too many
		"a a b",   // repeat
		"a b z",   // unknown card
		"",
	}
	for _, arg := range bad {
		if _, err := ParseOrder(arg); err == nil {
			t.Errorf("ParseOrder(%q) accepted, want error", arg)
		}
	}
}
