package session

import (
	"math/rand"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
)

// shuffled returns a uniformly random permutation of items. The input slice
// is never mutated.
func shuffled(items []catalog.AudioItem) []catalog.AudioItem {
	out := make([]catalog.AudioItem, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// shuffledWithSeed is shuffled with a deterministic source, for tests.
func shuffledWithSeed(items []catalog.AudioItem, seed int64) []catalog.AudioItem {
	out := make([]catalog.AudioItem, len(items))
	copy(out, items)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
