// ABOUTME: Storage interface and durable key namespace for the catalog
// ABOUTME: Defines feed/item persistence plus opaque state slots used by the sync engine

package storage

import (
	"github.com/harper/superflux/internal/models"
)

// State keys used by the sync engine and provider mirror.
const (
	StateLastSync      = "last-sync"
	StateSyncedFeedIDs = "synced-feed-ids"
	StateSyncedItemIDs = "synced-item-ids"
	StateProvider      = "provider"
	StateItemIDMap     = "item-id-map"
)

// Store is the durable persistence boundary for the catalog.
//
// Item bodies are bounded on write (full content stripped, content
// capped) so the store never grows with article bodies; the in-memory
// catalog remains the authority for display content during a session.
type Store interface {
	// Close releases underlying resources.
	Close() error

	// SaveFeed persists a feed (insert or overwrite).
	SaveFeed(feed *models.Feed) error

	// DeleteFeed removes a feed record. Items are deleted separately by
	// the caller, which owns the cascade.
	DeleteFeed(id string) error

	// ListFeeds returns all persisted feeds in unspecified order.
	ListFeeds() ([]*models.Feed, error)

	// SaveItem persists an item with its body fields bounded.
	SaveItem(item *models.Item) error

	// DeleteItem removes an item record.
	DeleteItem(id string) error

	// ListItems returns all persisted items in unspecified order.
	ListItems() ([]*models.Item, error)

	// ReplaceAll atomically replaces the full feed and item collections.
	// This is the sync engine's commit point: nothing else mutates
	// durable state mid-cycle.
	ReplaceAll(feeds []*models.Feed, items []*models.Item) error

	// GetState reads an opaque state slot; missing keys return nil, nil.
	GetState(key string) ([]byte, error)

	// SetState writes an opaque state slot.
	SetState(key string, value []byte) error
}

// maxPersistedContent bounds the stored Content field per item.
const maxPersistedContent = 64 * 1024

// boundItem returns a copy of the item safe for persistence: the
// (potentially huge) extracted full content is dropped and the feed
// content is capped.
func boundItem(item *models.Item) *models.Item {
	cp := item.Clone()
	cp.FullContent = ""
	if len(cp.Content) > maxPersistedContent {
		cp.Content = cp.Content[:maxPersistedContent]
	}
	return cp
}
