package graph

import "testing"

func TestSelfProximityIsOne(t *testing.T) {
	g := NewBuilder().Build()
	if got := g.Proximity("a.go", "a.go"); got != 1.0 {
		t.Errorf("Proximity(a,a) = %v, want 1.0", got)
	}
}

func TestDirectNeighborProximity(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 5; i++ {
		b.AddCoModification("a.go", "b.go")
	}
	g := b.Build()
	w := g.Weight("a.go", "b.go")
	if w != 0.4 {
		t.Fatalf("expected weight 0.4 for 5 co-mods, got %v", w)
	}
	if got := g.Proximity("a.go", "b.go"); got != 0.5*w {
		t.Errorf("Proximity(a,b) = %v, want %v", got, 0.5*w)
	}
}

func TestTwoHopProximity(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 5; i++ {
		b.AddCoModification("a.go", "m.go")
		b.AddCoModification("m.go", "t.go")
	}
	g := b.Build()
	got := g.Proximity("a.go", "t.go")
	want := 0.33 * minFloat(g.Weight("a.go", "m.go"), g.Weight("m.go", "t.go"))
	if got != want {
		t.Errorf("2-hop Proximity = %v, want %v", got, want)
	}
}

func TestUnreachableProximityIsZero(t *testing.T) {
	b := NewBuilder()
	b.AddCoModification("a.go", "b.go")
	g := b.Build()
	if got := g.Proximity("a.go", "z.go"); got != 0 {
		t.Errorf("Proximity(unreachable) = %v, want 0", got)
	}
}

func TestEdgeWeightFormulaAndFloor(t *testing.T) {
	b := NewBuilder()
	// A single shared prompt would contribute (1/3)*0.35 = 0.1167, above the 0.1 floor, and be kept.
	// A pair with just 1 burst co-edit gets (1/4)*0.25 = 0.0625 < 0.1, so it should be dropped.
	b.AddBurstCoEdits([]string{"x.go", "y.go"})
	g := b.Build()
	if w := g.Weight("x.go", "y.go"); w != 0 {
		t.Errorf("expected sub-floor edge to be omitted, got weight %v", w)
	}
}

func TestSharedPromptFilesAllPairs(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 3; i++ {
		b.AddSharedPromptFiles([]string{"a.go", "b.go", "c.go"})
	}
	g := b.Build()
	// Every unordered pair among {a,b,c} should have accumulated 3 shared prompts.
	want := (float64(3) / 3) * 0.35
	for _, pair := range [][2]string{{"a.go", "b.go"}, {"a.go", "c.go"}, {"b.go", "c.go"}} {
		if got := g.Weight(pair[0], pair[1]); got != want {
			t.Errorf("Weight(%s,%s) = %v, want %v", pair[0], pair[1], got, want)
		}
	}
}

func TestWeightCapsAtOne(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 20; i++ {
		b.AddCoModification("a.go", "b.go")
	}
	for i := 0; i < 10; i++ {
		b.AddSharedPromptFiles([]string{"a.go", "b.go"})
	}
	for i := 0; i < 10; i++ {
		b.AddBurstCoEdits([]string{"a.go", "b.go"})
	}
	g := b.Build()
	if w := g.Weight("a.go", "b.go"); w != 1.0 {
		t.Errorf("expected capped weight 1.0, got %v", w)
	}
}
