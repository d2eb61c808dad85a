package prompt

import "testing"

func TestForPageExactMatch(t *testing.T) {
	store := NewMemoryStore(Defaults(), SeedPages())

	got := store.ForPage("/graph")
	if len(got) != 1 || got[0].Category != "Blast Radius" {
		t.Fatalf("expected graph prompts, got %+v", got)
	}
}

func TestForPageNestedRoute(t *testing.T) {
	store := NewMemoryStore(Defaults(), SeedPages())

	got := store.ForPage("/view-central/ops-overview")
	if len(got) != 1 || got[0].Category != "Dashboard Insights" {
		t.Fatalf("expected view-central prompts, got %+v", got)
	}
}

func TestForPageFallsBackToDefaults(t *testing.T) {
	store := NewMemoryStore(Defaults(), SeedPages())

	for _, path := range []string{"", "/", "/unknown", "/graphs"} {
		got := store.ForPage(path)
		if len(got) != 2 || got[0].Category != "General Insights" {
			t.Fatalf("path %q: expected defaults, got %+v", path, got)
		}
	}
}

func TestForPageReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Defaults(), SeedPages())

	got := store.ForPage("/graph")
	got[0].Prompts[0].Title = "mutated"

	if again := store.ForPage("/graph"); again[0].Prompts[0].Title == "mutated" {
		t.Fatal("catalogue was mutated through a returned slice")
	}
}

func TestAllFlattensDefaults(t *testing.T) {
	store := NewMemoryStore(Defaults(), SeedPages())
	if got := len(store.All()); got != 4 {
		t.Fatalf("expected 4 prompts, got %d", got)
	}
}
