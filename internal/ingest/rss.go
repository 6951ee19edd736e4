// ABOUTME: Syndication (RSS/Atom) adapter using gofeed
// ABOUTME: Handles GUID fallbacks and reclassifies article feeds to podcast on audio enclosures

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/harper/superflux/internal/content"
	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/models"
)

// RSSAdapter ingests RSS and Atom feeds (article and podcast kinds).
type RSSAdapter struct {
	client *fetch.Client
}

// Fetch retrieves and parses the feed, returning items not already known.
func (a *RSSAdapter) Fetch(ctx context.Context, feed *models.Feed, known *models.KeySet) ([]*models.Item, error) {
	body, err := a.client.Get(ctx, feed.EndpointURL)
	if err != nil {
		return nil, err
	}
	return parseSyndication(body, feed, known)
}

// parseSyndication converts a raw XML payload into catalog items. It is
// shared with the video adapter, which resolves a channel to the same
// XML format before parsing.
func parseSyndication(body []byte, feed *models.Feed, known *models.KeySet) ([]*models.Item, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%s: %w", feed.EndpointURL, ErrEmptyPayload)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", feed.EndpointURL, err, ErrBadFormat)
	}

	if feed.Name == "" && parsed.Title != "" {
		feed.Name = parsed.Title
		feed.Touch()
	}

	// Reclassification happens before identity comparison so the items
	// below already carry the corrected kind.
	if feed.SourceKind == models.SourceArticle && hasAudioEnclosure(parsed) {
		feed.SourceKind = models.SourcePodcast
		feed.Touch()
	}

	items := make([]*models.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := models.NewItem(feed.ID, strings.TrimSpace(entry.Title))
		item.URL = entry.Link
		item.SourceKind = feed.SourceKind
		item.FeedName = feed.Name

		if entry.Author != nil {
			item.Author = entry.Author.Name
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.PublishedAt = entry.UpdatedParsed
		}

		raw := entry.Content
		if raw == "" {
			raw = entry.Description
		}
		item.Content = content.Sanitize(strings.TrimSpace(raw))
		item.Excerpt = content.Excerpt(item.Content, excerptLength)

		if known != nil && known.Contains(item) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func hasAudioEnclosure(parsed *gofeed.Feed) bool {
	for _, entry := range parsed.Items {
		for _, enc := range entry.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "audio/") {
				return true
			}
		}
	}
	return false
}
