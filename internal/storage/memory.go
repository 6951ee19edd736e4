// ABOUTME: In-memory Store implementation
// ABOUTME: Backs tests and the --ephemeral flag; no durability across processes

package storage

import (
	"sync"

	"github.com/harper/superflux/internal/models"
)

// Memory is a Store kept entirely in process memory. It applies the
// same body bounding as the KV store so behavior matches in tests.
type Memory struct {
	mu    sync.RWMutex
	feeds map[string]*models.Feed
	items map[string]*models.Item
	state map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		feeds: make(map[string]*models.Feed),
		items: make(map[string]*models.Item),
		state: make(map[string][]byte),
	}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// SaveFeed persists a feed.
func (m *Memory) SaveFeed(feed *models.Feed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[feed.ID] = feed.Clone()
	return nil
}

// DeleteFeed removes a feed record.
func (m *Memory) DeleteFeed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feeds, id)
	return nil
}

// ListFeeds returns all persisted feeds.
func (m *Memory) ListFeeds() ([]*models.Feed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	feeds := make([]*models.Feed, 0, len(m.feeds))
	for _, feed := range m.feeds {
		feeds = append(feeds, feed.Clone())
	}
	return feeds, nil
}

// SaveItem persists an item with bounded body fields.
func (m *Memory) SaveItem(item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = boundItem(item)
	return nil
}

// DeleteItem removes an item record.
func (m *Memory) DeleteItem(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// ListItems returns all persisted items.
func (m *Memory) ListItems() ([]*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*models.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item.Clone())
	}
	return items, nil
}

// ReplaceAll swaps both collections in one step.
func (m *Memory) ReplaceAll(feeds []*models.Feed, items []*models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds = make(map[string]*models.Feed, len(feeds))
	for _, feed := range feeds {
		m.feeds[feed.ID] = feed.Clone()
	}
	m.items = make(map[string]*models.Item, len(items))
	for _, item := range items {
		m.items[item.ID] = boundItem(item)
	}
	return nil
}

// GetState reads an opaque state slot; missing keys return nil, nil.
func (m *Memory) GetState(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.state[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// SetState writes an opaque state slot.
func (m *Memory) SetState(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = append([]byte(nil), value...)
	return nil
}
