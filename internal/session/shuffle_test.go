package session

import "testing"

func TestShuffledIsPermutation(t *testing.T) {
	items := testItems(20)
	out := shuffledWithSeed(items, 1)
	if len(out) != len(items) {
		t.Fatalf("length %d, want %d", len(out), len(items))
	}
	seen := make(map[string]int, len(items))
	for _, item := range items {
		seen[item.URL]++
	}
	for _, item := range out {
		seen[item.URL]--
	}
	for url, count := range seen {
		if count != 0 {
			t.Fatalf("item %q count off by %d", url, count)
		}
	}
}

func TestShuffledDoesNotMutateInput(t *testing.T) {
	items := testItems(20)
	original := testItems(20)
	shuffledWithSeed(items, 2)
	for i := range items {
		if items[i] != original[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestShuffledDeterministicPerSeed(t *testing.T) {
	items := testItems(10)
	a := shuffledWithSeed(items, 3)
	b := shuffledWithSeed(items, 3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
}
