package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// FeedSource builds a playlist from an RSS/podcast feed. Episodes with an
// audio enclosure become AudioItems keyed by their publication time, so the
// resulting playlist follows the same newest-first ordering as the archive
// catalog.
type FeedSource struct {
	log     *zap.Logger
	http    *http.Client
	feedURL string
}

// NewFeedSource creates a feed-backed catalog source.
func NewFeedSource(log *zap.Logger, feedURL string, timeout time.Duration) (*FeedSource, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, errors.New("feed url required")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FeedSource{
		log:     log,
		http:    &http.Client{Timeout: timeout},
		feedURL: feedURL,
	}, nil
}

// Fetch downloads and parses the feed.
func (s *FeedSource) Fetch(ctx context.Context) ([]AudioItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "tapedeck/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrFetch, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	items := make([]AudioItem, 0, len(feed.Items))
	seen := make(map[string]struct{}, len(feed.Items))
	for _, entry := range feed.Items {
		audioURL := pickEnclosure(entry)
		if audioURL == "" {
			continue
		}
		if _, dup := seen[audioURL]; dup {
			continue
		}
		seen[audioURL] = struct{}{}
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = CleanTitle(audioURL)
		}
		items = insertBySortKey(items, AudioItem{
			Title:   title,
			URL:     audioURL,
			SortKey: publishedUnix(entry),
		})
	}

	s.log.Info("feed fetched", zap.String("feed", s.feedURL), zap.Int("tracks", len(items)))
	return items, nil
}

func pickEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if enc.URL != "" && strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func publishedUnix(item *gofeed.Item) int64 {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Unix()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Unix()
	}
	return 0
}
