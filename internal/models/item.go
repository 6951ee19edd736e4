// ABOUTME: Item model for a single catalog entry with read/star/bookmark state
// ABOUTME: Defines the multi-key identity rules used for deduplication and merge

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item represents a single entry (article, post, video, thread) in the catalog.
type Item struct {
	ID           string     `json:"id"`
	FeedID       string     `json:"feed_id"`
	Title        string     `json:"title"`
	Excerpt      string     `json:"excerpt,omitempty"`
	Content      string     `json:"content,omitempty"`
	FullContent  string     `json:"full_content,omitempty"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	URL          string     `json:"url,omitempty"`
	IsRead       bool       `json:"is_read"`
	IsStarred    bool       `json:"is_starred"`
	IsBookmarked bool       `json:"is_bookmarked"`
	SourceKind   SourceKind `json:"source_kind"`
	FeedName     string     `json:"feed_name,omitempty"` // denormalized, may lag its feed
	RemoteID     string     `json:"remote_id,omitempty"`
	RemoteFeedID string     `json:"remote_feed_id,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewItem creates an Item with a generated ID and current timestamp.
func NewItem(feedID, title string) *Item {
	return &Item{
		ID:        uuid.New().String(),
		FeedID:    feedID,
		Title:     title,
		UpdatedAt: time.Now(),
	}
}

// Touch advances UpdatedAt.
func (i *Item) Touch() {
	i.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	cp := *i
	return &cp
}

// TitleKey returns the (feedID, normalized title) identity key.
func (i *Item) TitleKey() string {
	return i.FeedID + "\x00" + NormalizeTitle(i.Title)
}

// NormalizeTitle lowercases a title and collapses runs of whitespace,
// so re-published entries that only differ in casing or spacing still
// match. Upstream guids are sometimes just the permalink with casing
// differences, which is why the title key exists at all.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// KeySet indexes the three identity keys (id, url, feed+title) of a
// collection of items. Membership under any key means "same logical
// item".
type KeySet struct {
	ids    map[string]struct{}
	urls   map[string]struct{}
	titles map[string]struct{}
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		ids:    make(map[string]struct{}),
		urls:   make(map[string]struct{}),
		titles: make(map[string]struct{}),
	}
}

// Add records all identity keys of the item. Empty URLs are not indexed.
func (k *KeySet) Add(item *Item) {
	k.ids[item.ID] = struct{}{}
	if item.URL != "" {
		k.urls[item.URL] = struct{}{}
	}
	k.titles[item.TitleKey()] = struct{}{}
}

// Contains reports whether any identity key of the item is already present.
func (k *KeySet) Contains(item *Item) bool {
	if _, ok := k.ids[item.ID]; ok {
		return true
	}
	if item.URL != "" {
		if _, ok := k.urls[item.URL]; ok {
			return true
		}
	}
	_, ok := k.titles[item.TitleKey()]
	return ok
}

// Len returns the number of items added.
func (k *KeySet) Len() int {
	return len(k.ids)
}
