package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrFetch wraps catalog fetch failures so callers can treat them as a
// single recoverable condition.
var ErrFetch = errors.New("catalog fetch failed")

// URL styles for resulting media links.
const (
	// URLStyleServer builds https://{server}{dir}/{nameWithoutExtension}.
	URLStyleServer = "server"
	// URLStyleDownload builds https://archive.org/download/{catalogId}/{name}.
	URLStyleDownload = "download"
)

// ClientConfig configures the archive catalog client.
type ClientConfig struct {
	BaseURL  string
	Format   string
	URLStyle string
	Timeout  time.Duration
}

// Client fetches track listings from an archive.org style metadata endpoint.
type Client struct {
	log    *zap.Logger
	http   *http.Client
	config ClientConfig
}

// NewClient creates a catalog client. The long default timeout tolerates a
// slow cold-start of the backing service.
func NewClient(log *zap.Logger, cfg ClientConfig) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://archive.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = "VBR MP3"
	}
	if strings.TrimSpace(cfg.URLStyle) == "" {
		cfg.URLStyle = URLStyleServer
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		log:    log,
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type metadataResponse struct {
	Server string       `json:"server"`
	Dir    string       `json:"dir"`
	Files  []fileRecord `json:"files"`
}

type fileRecord struct {
	Name   string  `json:"name"`
	Format string  `json:"format"`
	Mtime  sortKey `json:"mtime"`
}

// sortKey tolerates the catalog serving mtime as either a JSON string or a
// number. Unparsable values degrade to zero instead of failing the item.
type sortKey int64

func (k *sortKey) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*k = 0
		return nil
	}
	*k = sortKey(n)
	return nil
}

// Fetch queries the metadata endpoint for catalogID and returns the playlist
// in descending modification-time order, ties keeping the listing order.
// Only records matching the configured format are retained. On error the
// caller's in-memory playlist must be left untouched; nothing partial is
// ever returned.
func (c *Client) Fetch(ctx context.Context, catalogID string) ([]AudioItem, error) {
	if strings.TrimSpace(catalogID) == "" {
		return nil, fmt.Errorf("%w: catalog id required", ErrFetch)
	}

	endpoint := fmt.Sprintf("%s/metadata/%s", c.config.BaseURL, url.PathEscape(catalogID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "tapedeck/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrFetch, resp.Status)
	}

	var metadata metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	items := make([]AudioItem, 0, len(metadata.Files))
	seen := make(map[string]struct{}, len(metadata.Files))
	for _, file := range metadata.Files {
		if file.Format != c.config.Format {
			continue
		}
		item := AudioItem{
			Title:   CleanTitle(file.Name),
			URL:     c.mediaURL(catalogID, metadata, file.Name),
			SortKey: int64(file.Mtime),
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		items = insertBySortKey(items, item)
	}

	c.log.Info("catalog fetched",
		zap.String("catalog", catalogID),
		zap.Int("files", len(metadata.Files)),
		zap.Int("tracks", len(items)),
	)
	return items, nil
}

func (c *Client) mediaURL(catalogID string, metadata metadataResponse, name string) string {
	switch c.config.URLStyle {
	case URLStyleDownload:
		return fmt.Sprintf("https://archive.org/download/%s/%s", url.PathEscape(catalogID), url.PathEscape(name))
	default:
		return fmt.Sprintf("https://%s%s/%s", metadata.Server, metadata.Dir, url.PathEscape(StripExtension(name)))
	}
}
