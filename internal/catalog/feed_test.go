package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Cast</title>
    <item>
      <title>Episode Two</title>
      <pubDate>Tue, 02 Jan 2024 00:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.org/ep2.mp3" type="audio/mpeg" length="2"/>
    </item>
    <item>
      <title>Episode One</title>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.org/ep1.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title>Show Notes Only</title>
      <pubDate>Wed, 03 Jan 2024 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFeedSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	source, err := NewFeedSource(zap.NewNop(), server.URL, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Episode Two" || items[1].Title != "Episode One" {
		t.Fatalf("unexpected order: %q, %q", items[0].Title, items[1].Title)
	}
	if items[0].URL != "https://cdn.example.org/ep2.mp3" {
		t.Fatalf("unexpected url %q", items[0].URL)
	}
}

func TestFeedSourceRequiresURL(t *testing.T) {
	if _, err := NewFeedSource(zap.NewNop(), "  ", 0); err == nil {
		t.Fatalf("expected error for empty feed url")
	}
}
