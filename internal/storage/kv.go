// ABOUTME: Charm KV-backed Store with open-use-close connection handling
// ABOUTME: Short-lived connections per operation; cloud sync piggybacks on writes

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/charm/kv"
	badger "github.com/dgraph-io/badger/v3"

	"github.com/harper/superflux/internal/models"
)

const (
	// Key prefixes for the KV namespace
	feedPrefix  = "feed:"
	itemPrefix  = "item:"
	statePrefix = "state:"

	// DefaultCharmHost is used when CHARM_HOST is not set.
	DefaultCharmHost = "charm.2389.dev"

	// DBName is the charm kv database name for superflux.
	DBName = "superflux"
)

// KVStore persists the catalog in a charm kv database. It does not hold
// a persistent connection: each operation opens the database, performs
// the operation, and closes it, so concurrent CLI invocations don't
// fight over the badger lock.
type KVStore struct {
	dbName   string
	autoSync bool
}

// OpenKV creates a KV-backed store with cloud auto-sync enabled.
func OpenKV() (*KVStore, error) {
	if os.Getenv("CHARM_HOST") == "" {
		os.Setenv("CHARM_HOST", DefaultCharmHost)
	}
	return &KVStore{dbName: DBName, autoSync: true}, nil
}

// OpenKVNamed creates a store against a custom database name with
// auto-sync off. Tests use this for isolated databases.
func OpenKVNamed(dbName string, autoSync bool) *KVStore {
	return &KVStore{dbName: dbName, autoSync: autoSync}
}

// do opens the database, executes fn, syncs when enabled, and closes.
func (s *KVStore) do(fn func(k *kv.KV) error) error {
	k, err := kv.OpenWithDefaults(s.dbName)
	if err != nil {
		return fmt.Errorf("open kv database %s: %w", s.dbName, err)
	}
	defer k.Close()
	if err := fn(k); err != nil {
		return err
	}
	if s.autoSync {
		return k.Sync()
	}
	return nil
}

// doReadOnly opens the database, executes fn, and closes without
// syncing.
func (s *KVStore) doReadOnly(fn func(k *kv.KV) error) error {
	k, err := kv.OpenWithDefaults(s.dbName)
	if err != nil {
		return fmt.Errorf("open kv database %s: %w", s.dbName, err)
	}
	defer k.Close()
	return fn(k)
}

// Close is a no-op; connections are closed after each operation.
func (s *KVStore) Close() error {
	return nil
}

func feedKey(id string) []byte   { return []byte(feedPrefix + id) }
func itemKey(id string) []byte   { return []byte(itemPrefix + id) }
func stateKey(key string) []byte { return []byte(statePrefix + key) }

// SaveFeed persists a feed (insert or overwrite).
func (s *KVStore) SaveFeed(feed *models.Feed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	return s.do(func(k *kv.KV) error {
		return k.Set(feedKey(feed.ID), data)
	})
}

// DeleteFeed removes a feed record.
func (s *KVStore) DeleteFeed(id string) error {
	return s.do(func(k *kv.KV) error {
		return k.Delete(feedKey(id))
	})
}

// ListFeeds returns all persisted feeds.
func (s *KVStore) ListFeeds() ([]*models.Feed, error) {
	var feeds []*models.Feed
	err := s.doReadOnly(func(k *kv.KV) error {
		return scanPrefix(k, feedPrefix, func(data []byte) {
			var feed models.Feed
			if err := json.Unmarshal(data, &feed); err != nil {
				warnCorrupt("feed")
				return
			}
			feeds = append(feeds, &feed)
		})
	})
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// SaveItem persists an item with its body fields bounded.
func (s *KVStore) SaveItem(item *models.Item) error {
	data, err := json.Marshal(boundItem(item))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	return s.do(func(k *kv.KV) error {
		return k.Set(itemKey(item.ID), data)
	})
}

// DeleteItem removes an item record.
func (s *KVStore) DeleteItem(id string) error {
	return s.do(func(k *kv.KV) error {
		return k.Delete(itemKey(id))
	})
}

// ListItems returns all persisted items.
func (s *KVStore) ListItems() ([]*models.Item, error) {
	var items []*models.Item
	err := s.doReadOnly(func(k *kv.KV) error {
		return scanPrefix(k, itemPrefix, func(data []byte) {
			var item models.Item
			if err := json.Unmarshal(data, &item); err != nil {
				warnCorrupt("item")
				return
			}
			items = append(items, &item)
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceAll swaps the feed and item collections inside one write
// transaction: stale records are deleted and the new collections
// written before the database is released.
func (s *KVStore) ReplaceAll(feeds []*models.Feed, items []*models.Item) error {
	return s.do(func(k *kv.KV) error {
		keepFeeds := make(map[string]bool, len(feeds))
		for _, feed := range feeds {
			keepFeeds[feed.ID] = true
		}
		keepItems := make(map[string]bool, len(items))
		for _, item := range items {
			keepItems[item.ID] = true
		}

		keys, err := k.Keys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		for _, key := range keys {
			ks := string(key)
			switch {
			case strings.HasPrefix(ks, feedPrefix) && !keepFeeds[strings.TrimPrefix(ks, feedPrefix)]:
				if err := k.Delete(key); err != nil {
					return fmt.Errorf("delete stale feed: %w", err)
				}
			case strings.HasPrefix(ks, itemPrefix) && !keepItems[strings.TrimPrefix(ks, itemPrefix)]:
				if err := k.Delete(key); err != nil {
					return fmt.Errorf("delete stale item: %w", err)
				}
			}
		}

		for _, feed := range feeds {
			data, err := json.Marshal(feed)
			if err != nil {
				return fmt.Errorf("marshal feed: %w", err)
			}
			if err := k.Set(feedKey(feed.ID), data); err != nil {
				return err
			}
		}
		for _, item := range items {
			data, err := json.Marshal(boundItem(item))
			if err != nil {
				return fmt.Errorf("marshal item: %w", err)
			}
			if err := k.Set(itemKey(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetState reads an opaque state slot; missing keys return nil, nil.
func (s *KVStore) GetState(key string) ([]byte, error) {
	var value []byte
	err := s.doReadOnly(func(k *kv.KV) error {
		v, err := stateValue(k.Get(stateKey(key)))
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// stateValue normalizes a kv read for the Store state contract: a key
// badger does not have reads as nil, nil, matching the Memory backend.
func stateValue(data []byte, err error) ([]byte, error) {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// SetState writes an opaque state slot.
func (s *KVStore) SetState(key string, value []byte) error {
	return s.do(func(k *kv.KV) error {
		return k.Set(stateKey(key), value)
	})
}

// Reset wipes all local data (for the sync reset command).
func (s *KVStore) Reset() error {
	k, err := kv.OpenWithDefaults(s.dbName)
	if err != nil {
		return fmt.Errorf("open kv database %s: %w", s.dbName, err)
	}
	defer k.Close()
	return k.Reset()
}

// CloudSync manually triggers a sync with the charm server.
func (s *KVStore) CloudSync() error {
	k, err := kv.OpenWithDefaults(s.dbName)
	if err != nil {
		return fmt.Errorf("open kv database %s: %w", s.dbName, err)
	}
	defer k.Close()
	return k.Sync()
}

func scanPrefix(k *kv.KV, prefix string, visit func(data []byte)) error {
	keys, err := k.Keys()
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		data, err := k.Get(key)
		if err != nil {
			warnCorrupt(strings.TrimSuffix(prefix, ":"))
			continue
		}
		visit(data)
	}
	return nil
}

var warnedCorruption bool

func warnCorrupt(kind string) {
	if warnedCorruption {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: some %s records may be corrupted\n", kind)
	warnedCorruption = true
}
