// ABOUTME: Feed model representing a subscription to any supported source kind
// ABOUTME: Carries display metadata, folder placement, and remote/provider linkage

package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies the upstream format a feed is ingested from.
type SourceKind string

const (
	SourceArticle SourceKind = "article"
	SourcePodcast SourceKind = "podcast"
	SourceSocial  SourceKind = "social"
	SourceVideo   SourceKind = "video"
	SourceForum   SourceKind = "forum"
)

// Feed represents a subscribed content source.
//
// ID is the local identity. EndpointURL is the cross-device identity:
// two devices that add "the same" feed independently end up with
// different IDs but the same EndpointURL, and the sync engine folds
// them into one record.
type Feed struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SourceKind   SourceKind `json:"source_kind"`
	EndpointURL  string     `json:"endpoint_url"`
	Color        string     `json:"color,omitempty"` // display only
	Icon         string     `json:"icon,omitempty"`  // display only
	FolderPath   string     `json:"folder_path,omitempty"`
	RemoteID     string     `json:"remote_id,omitempty"`
	ProviderKind string     `json:"provider_kind,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewFeed creates a Feed with a generated ID and current timestamps.
func NewFeed(endpointURL string, kind SourceKind) *Feed {
	now := time.Now()
	return &Feed{
		ID:          uuid.New().String(),
		EndpointURL: endpointURL,
		SourceKind:  kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Touch advances UpdatedAt. Every mutation must go through this so the
// timestamp stays usable as the merge tiebreaker.
func (f *Feed) Touch() {
	f.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the feed.
func (f *Feed) Clone() *Feed {
	cp := *f
	return &cp
}
