package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AudioItem is one playable track. Immutable once built; the JSON keys match
// the persisted snapshot format.
type AudioItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	SortKey int64  `json:"mtime"`
}

// CleanTitle derives a display title from a raw catalog filename: extension
// stripped, Unicode normalized to composed form, truncated at the first '#',
// surrounding whitespace trimmed.
func CleanTitle(name string) string {
	title := StripExtension(name)
	title = norm.NFKC.String(title)
	if idx := strings.Index(title, "#"); idx >= 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}

// StripExtension removes the trailing extension from a filename. A leading
// dot (hidden file) is not treated as an extension.
func StripExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx > 0 {
		return name[:idx]
	}
	return name
}

// insertBySortKey inserts item keeping the slice in descending SortKey order.
// Equal keys keep their arrival order.
func insertBySortKey(items []AudioItem, item AudioItem) []AudioItem {
	idx := len(items)
	for i, existing := range items {
		if item.SortKey > existing.SortKey {
			idx = i
			break
		}
	}
	items = append(items, AudioItem{})
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}
