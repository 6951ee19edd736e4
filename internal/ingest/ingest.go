// ABOUTME: Source ingestion adapters turning heterogeneous upstream formats into catalog items
// ABOUTME: One adapter per source kind behind a common interface, selected by ForKind

package ingest

import (
	"context"
	"errors"

	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/models"
)

// excerptLength caps the plain-text excerpt stored on each item.
const excerptLength = 280

// ErrEmptyPayload marks an upstream response with no usable body.
// Adapters fail loudly on it instead of quietly producing zero items.
var ErrEmptyPayload = errors.New("empty payload from upstream")

// ErrBadFormat marks a payload the adapter could not parse (malformed
// XML, unexpected JSON shape).
var ErrBadFormat = errors.New("malformed upstream payload")

// Adapter fetches and normalizes items for one source kind.
//
// Implementations return only items whose identity keys are absent from
// known; the feed itself may be mutated as an ingestion side effect
// (an article feed is reclassified to podcast when entries carry audio
// enclosures).
type Adapter interface {
	Fetch(ctx context.Context, feed *models.Feed, known *models.KeySet) ([]*models.Item, error)
}

// ForKind returns the adapter responsible for a source kind.
func ForKind(kind models.SourceKind, client *fetch.Client) Adapter {
	switch kind {
	case models.SourceSocial:
		return &SocialAdapter{client: client}
	case models.SourceVideo:
		return &VideoAdapter{client: client}
	case models.SourceForum:
		return &ForumAdapter{client: client}
	default:
		// article and podcast are both syndication XML
		return &RSSAdapter{client: client}
	}
}
