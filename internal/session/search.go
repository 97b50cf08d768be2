package session

import (
	"strings"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
)

// Match is one search hit, keeping the item's index into the full playlist
// so selecting it addresses the right track.
type Match struct {
	Item  catalog.AudioItem
	Index int
}

// Search filters items by case-insensitive substring match on the title,
// preserving playlist order. An empty query yields no matches.
func Search(items []catalog.AudioItem, query string) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var matches []Match
	for i, item := range items {
		if strings.Contains(strings.ToLower(item.Title), query) {
			matches = append(matches, Match{Item: item, Index: i})
		}
	}
	return matches
}
