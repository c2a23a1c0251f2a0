// Package feed polls a YouTube channel's Atom feed for upload candidates.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Candidate is one feed entry. Transient: produced here, consumed by the
// pipeline, never persisted.
type Candidate struct {
	ID    string
	Title string
}

// WatchURL is the canonical URL handed to the fetcher.
func (c Candidate) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + c.ID
}

// Source fetches the candidate list in feed order (newest first for
// YouTube Atom feeds).
type Source interface {
	Fetch(ctx context.Context) ([]Candidate, error)
}

type Client struct {
	URL    string
	parser *gofeed.Parser
}

func NewClient(url string) *Client {
	return &Client{URL: url, parser: gofeed.NewParser()}
}

func (c *Client) Fetch(ctx context.Context) ([]Candidate, error) {
	f, err := c.parser.ParseURLWithContext(c.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", c.URL, err)
	}
	out := make([]Candidate, 0, len(f.Items))
	for _, item := range f.Items {
		id := videoID(item)
		title := strings.TrimSpace(item.Title)
		if id == "" || title == "" {
			continue
		}
		out = append(out, Candidate{ID: id, Title: title})
	}
	return out, nil
}

// videoID pulls the yt:videoId extension; the entry GUID
// ("yt:video:<id>") is the fallback for feeds that omit it.
func videoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]; ok {
		if vals, ok := ext["videoId"]; ok && len(vals) > 0 {
			return strings.TrimSpace(vals[0].Value)
		}
	}
	if strings.HasPrefix(item.GUID, "yt:video:") {
		return strings.TrimPrefix(item.GUID, "yt:video:")
	}
	return ""
}
