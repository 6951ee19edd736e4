// ABOUTME: In-memory catalog of feeds and items backed by durable storage
// ABOUTME: Owns multi-key dedup, derived unread counts, and change observers

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/storage"
)

// Sentinel errors returned by catalog operations.
var (
	ErrFeedNotFound  = errors.New("feed not found")
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateFeed = errors.New("feed with that URL already exists")
)

// Event kinds delivered to OnChange observers.
const (
	EventCatalogUpdated = "catalog-updated"
	EventSyncError      = "sync-error"
)

// Event describes a catalog change or a surfaced sync failure.
type Event struct {
	Kind    string
	Op      string // set for sync-error events
	Message string // set for sync-error events
}

// Store is the local catalog. All reads are served from memory; every
// committed mutation is also written through the storage layer. A
// Store instance owns its observers; there is no process-wide
// broadcast.
type Store struct {
	mu        sync.RWMutex
	store     storage.Store
	feeds     map[string]*models.Feed
	items     map[string]*models.Item
	folders   map[string]struct{}
	observers []func(Event)
}

// Open loads the catalog from durable storage.
func Open(store storage.Store) (*Store, error) {
	s := &Store{
		store:   store,
		feeds:   make(map[string]*models.Feed),
		items:   make(map[string]*models.Item),
		folders: make(map[string]struct{}),
	}
	feeds, err := store.ListFeeds()
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}
	for _, feed := range feeds {
		s.feeds[feed.ID] = feed
	}
	items, err := store.ListItems()
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	if err := s.loadFolders(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers an observer. Observers are invoked synchronously,
// after the mutation that triggered them has been persisted.
func (s *Store) OnChange(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// notify must be called without the lock held.
func (s *Store) notify(ev Event) {
	s.mu.RLock()
	observers := make([]func(Event), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// EmitSyncError surfaces a recoverable sync failure to observers.
func (s *Store) EmitSyncError(op, message string) {
	s.notify(Event{Kind: EventSyncError, Op: op, Message: message})
}

// AddFeed inserts a new feed. Adding a second feed with the same
// endpoint URL returns ErrDuplicateFeed.
func (s *Store) AddFeed(feed *models.Feed) error {
	s.mu.Lock()
	for _, existing := range s.feeds {
		if existing.EndpointURL == feed.EndpointURL {
			s.mu.Unlock()
			return ErrDuplicateFeed
		}
	}
	s.feeds[feed.ID] = feed.Clone()
	if err := s.store.SaveFeed(feed); err != nil {
		delete(s.feeds, feed.ID)
		s.mu.Unlock()
		return fmt.Errorf("saving feed: %w", err)
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// RemoveFeed deletes a feed and cascades the delete to its items.
func (s *Store) RemoveFeed(id string) error {
	s.mu.Lock()
	if _, ok := s.feeds[id]; !ok {
		s.mu.Unlock()
		return ErrFeedNotFound
	}
	delete(s.feeds, id)
	if err := s.store.DeleteFeed(id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("deleting feed: %w", err)
	}
	for itemID, item := range s.items {
		if item.FeedID != id {
			continue
		}
		delete(s.items, itemID)
		if err := s.store.DeleteItem(itemID); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("deleting item %s: %w", itemID, err)
		}
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// RenameFeed updates a feed's display name.
func (s *Store) RenameFeed(id, name string) error {
	return s.updateFeed(id, func(feed *models.Feed) {
		feed.Name = name
	})
}

// MoveFeedToFolder places a feed under the given folder path. An empty
// path moves it to the root.
func (s *Store) MoveFeedToFolder(id, folderPath string) error {
	if folderPath != "" {
		if err := s.CreateFolder(folderPath); err != nil {
			return err
		}
	}
	return s.updateFeed(id, func(feed *models.Feed) {
		feed.FolderPath = folderPath
	})
}

// UpdateFeed applies fn to the feed, advances its timestamp, and
// persists the result.
func (s *Store) UpdateFeed(id string, fn func(*models.Feed)) error {
	return s.updateFeed(id, fn)
}

func (s *Store) updateFeed(id string, fn func(*models.Feed)) error {
	s.mu.Lock()
	feed, ok := s.feeds[id]
	if !ok {
		s.mu.Unlock()
		return ErrFeedNotFound
	}
	fn(feed)
	feed.Touch()
	if err := s.store.SaveFeed(feed); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving feed: %w", err)
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// ImportFeeds adds a batch of feeds, skipping any whose endpoint URL
// is already present in the catalog or earlier in the batch. Returns
// added and skipped counts.
func (s *Store) ImportFeeds(feeds []*models.Feed) (added, skipped int, err error) {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.feeds))
	for _, existing := range s.feeds {
		seen[existing.EndpointURL] = struct{}{}
	}
	for _, feed := range feeds {
		if _, dup := seen[feed.EndpointURL]; dup {
			skipped++
			continue
		}
		seen[feed.EndpointURL] = struct{}{}
		s.feeds[feed.ID] = feed.Clone()
		if err := s.store.SaveFeed(feed); err != nil {
			s.mu.Unlock()
			return added, skipped, fmt.Errorf("saving feed: %w", err)
		}
		added++
	}
	s.mu.Unlock()
	if added > 0 {
		s.notify(Event{Kind: EventCatalogUpdated})
	}
	return added, skipped, nil
}

// MergeIncomingItems folds a batch of fetched items into the catalog.
// An incoming item is dropped when any of its identity keys (id, url,
// feed+normalized-title) matches an existing item or an earlier item
// in the same batch; first occurrence wins. Returns the accepted
// subset in batch order.
func (s *Store) MergeIncomingItems(incoming []*models.Item) ([]*models.Item, error) {
	s.mu.Lock()
	known := models.NewKeySet()
	for _, item := range s.items {
		known.Add(item)
	}
	var accepted []*models.Item
	for _, item := range incoming {
		if known.Contains(item) {
			continue
		}
		known.Add(item)
		s.items[item.ID] = item.Clone()
		if err := s.store.SaveItem(item); err != nil {
			s.mu.Unlock()
			return accepted, fmt.Errorf("saving item: %w", err)
		}
		accepted = append(accepted, item)
	}
	s.mu.Unlock()
	if len(accepted) > 0 {
		s.notify(Event{Kind: EventCatalogUpdated})
	}
	return accepted, nil
}

// MutateItem applies fn to the item, advances its timestamp, and
// persists the result.
func (s *Store) MutateItem(id string, fn func(*models.Item)) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	fn(item)
	item.Touch()
	if err := s.store.SaveItem(item); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving item: %w", err)
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// Feed returns the feed with the given id.
func (s *Store) Feed(id string) (*models.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[id]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return feed.Clone(), nil
}

// FeedByURL returns the feed with the given endpoint URL, if any.
func (s *Store) FeedByURL(endpointURL string) (*models.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, feed := range s.feeds {
		if feed.EndpointURL == endpointURL {
			return feed.Clone(), true
		}
	}
	return nil, false
}

// Feeds returns all feeds sorted by folder path then name.
func (s *Store) Feeds() []*models.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feeds := make([]*models.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, feed.Clone())
	}
	sort.Slice(feeds, func(i, j int) bool {
		if feeds[i].FolderPath != feeds[j].FolderPath {
			return feeds[i].FolderPath < feeds[j].FolderPath
		}
		return strings.ToLower(feeds[i].Name) < strings.ToLower(feeds[j].Name)
	})
	return feeds
}

// Item returns the item with the given id.
func (s *Store) Item(id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item.Clone(), nil
}

// Items returns all items, newest first. Items without a published
// date sort by their updated timestamp.
func (s *Store) Items() []*models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedItems(s.items, func(*models.Item) bool { return true })
}

// ItemsForFeed returns the items of one feed, newest first.
func (s *Store) ItemsForFeed(feedID string) []*models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedItems(s.items, func(item *models.Item) bool { return item.FeedID == feedID })
}

func sortedItems(items map[string]*models.Item, keep func(*models.Item) bool) []*models.Item {
	out := make([]*models.Item, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return itemTime(out[i]).After(itemTime(out[j]))
	})
	return out
}

func itemTime(item *models.Item) time.Time {
	if item.PublishedAt != nil {
		return *item.PublishedAt
	}
	return item.UpdatedAt
}

// UnreadCount derives the unread total for one feed by counting. The
// count is never stored, so it cannot drift from item state.
func (s *Store) UnreadCount(feedID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, item := range s.items {
		if item.FeedID == feedID && !item.IsRead {
			count++
		}
	}
	return count
}

// UnreadCounts derives unread totals for every feed in one pass.
func (s *Store) UnreadCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.feeds))
	for id := range s.feeds {
		counts[id] = 0
	}
	for _, item := range s.items {
		if !item.IsRead {
			counts[item.FeedID]++
		}
	}
	return counts
}

// Snapshot returns deep copies of all feeds and items for the sync
// engine to merge against without holding the catalog lock.
func (s *Store) Snapshot() ([]*models.Feed, []*models.Item) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feeds := make([]*models.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, feed.Clone())
	}
	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	return feeds, items
}

// ReplaceAll swaps in the merged collections produced by a sync cycle.
// The durable write happens in a single storage transaction; this is
// the commit point of the cycle.
func (s *Store) ReplaceAll(feeds []*models.Feed, items []*models.Item) error {
	s.mu.Lock()
	if err := s.store.ReplaceAll(feeds, items); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("committing catalog: %w", err)
	}
	s.feeds = make(map[string]*models.Feed, len(feeds))
	for _, feed := range feeds {
		s.feeds[feed.ID] = feed.Clone()
	}
	s.items = make(map[string]*models.Item, len(items))
	for _, item := range items {
		s.items[item.ID] = item.Clone()
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}
