// ABOUTME: Miniflux provider speaking token-header REST under /v1
// ABOUTME: Paginates entry reads by offset+limit against a server-reported total

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const minifluxPageSize = 100

// Miniflux talks to a Miniflux server using its static API token.
type Miniflux struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewMiniflux constructs a Miniflux provider.
func NewMiniflux(cfg MinifluxConfig) *Miniflux {
	return &Miniflux{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind returns the provider kind.
func (m *Miniflux) Kind() string { return KindMiniflux }

func (m *Miniflux) request(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Auth-Token", m.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling miniflux: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: miniflux returned %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("miniflux %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding miniflux response: %w", err)
	}
	return nil
}

// TestConnection verifies the token against /v1/me.
func (m *Miniflux) TestConnection(ctx context.Context) error {
	return m.request(ctx, http.MethodGet, "/v1/me", nil, &struct{}{})
}

type minifluxFeed struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	FeedURL string `json:"feed_url"`
	SiteURL string `json:"site_url"`
}

// GetFeeds lists all subscriptions.
func (m *Miniflux) GetFeeds(ctx context.Context) ([]RemoteFeed, error) {
	var raw []minifluxFeed
	if err := m.request(ctx, http.MethodGet, "/v1/feeds", nil, &raw); err != nil {
		return nil, err
	}
	feeds := make([]RemoteFeed, 0, len(raw))
	for _, f := range raw {
		feeds = append(feeds, RemoteFeed{
			ID:      strconv.FormatInt(f.ID, 10),
			Title:   f.Title,
			FeedURL: f.FeedURL,
			SiteURL: f.SiteURL,
		})
	}
	return feeds, nil
}

type minifluxEntry struct {
	ID          int64  `json:"id"`
	FeedID      int64  `json:"feed_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"`
	Status      string `json:"status"`
	Starred     bool   `json:"starred"`
}

type minifluxEntryPage struct {
	Total   int             `json:"total"`
	Entries []minifluxEntry `json:"entries"`
}

// pagedEntries walks /v1/entries with offset+limit pagination, stopping
// when a page comes back short or the accumulated count reaches the
// server-reported total.
func (m *Miniflux) pagedEntries(ctx context.Context, query url.Values, max int) ([]minifluxEntry, error) {
	var all []minifluxEntry
	offset := 0
	for {
		limit := minifluxPageSize
		if max > 0 && max-len(all) < limit {
			limit = max - len(all)
		}
		query.Set("limit", strconv.Itoa(limit))
		query.Set("offset", strconv.Itoa(offset))
		var page minifluxEntryPage
		if err := m.request(ctx, http.MethodGet, "/v1/entries?"+query.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		offset += len(page.Entries)
		if len(page.Entries) < limit || len(all) >= page.Total {
			break
		}
		if max > 0 && len(all) >= max {
			break
		}
	}
	return all, nil
}

// GetUnreadIDs lists the ids of all unread entries.
func (m *Miniflux) GetUnreadIDs(ctx context.Context) ([]string, error) {
	entries, err := m.pagedEntries(ctx, url.Values{"status": {"unread"}}, 0)
	if err != nil {
		return nil, err
	}
	return minifluxIDs(entries), nil
}

// GetStarredIDs lists the ids of all starred entries.
func (m *Miniflux) GetStarredIDs(ctx context.Context) ([]string, error) {
	entries, err := m.pagedEntries(ctx, url.Values{"starred": {"true"}}, 0)
	if err != nil {
		return nil, err
	}
	return minifluxIDs(entries), nil
}

func minifluxIDs(entries []minifluxEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, strconv.FormatInt(e.ID, 10))
	}
	return ids
}

// GetEntries fetches entries published after since, newest first, up to
// limit (0 means no cap).
func (m *Miniflux) GetEntries(ctx context.Context, since time.Time, limit int) ([]RemoteEntry, error) {
	query := url.Values{
		"order":     {"published_at"},
		"direction": {"desc"},
	}
	if !since.IsZero() {
		query.Set("published_after", strconv.FormatInt(since.Unix(), 10))
	}
	raw, err := m.pagedEntries(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]RemoteEntry, 0, len(raw))
	for _, e := range raw {
		entry := RemoteEntry{
			ID:      strconv.FormatInt(e.ID, 10),
			FeedID:  strconv.FormatInt(e.FeedID, 10),
			Title:   e.Title,
			URL:     e.URL,
			Author:  e.Author,
			Content: e.Content,
			Read:    e.Status == "read",
			Starred: e.Starred,
		}
		if ts, err := time.Parse(time.RFC3339, e.PublishedAt); err == nil {
			entry.PublishedAt = &ts
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *Miniflux) setStatus(ctx context.Context, ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	entryIDs, err := parseInt64IDs(ids)
	if err != nil {
		return err
	}
	body := map[string]any{"entry_ids": entryIDs, "status": status}
	return m.request(ctx, http.MethodPut, "/v1/entries", body, nil)
}

// MarkAsRead marks the given entries read.
func (m *Miniflux) MarkAsRead(ctx context.Context, ids []string) error {
	return m.setStatus(ctx, ids, "read")
}

// MarkAsUnread marks the given entries unread.
func (m *Miniflux) MarkAsUnread(ctx context.Context, ids []string) error {
	return m.setStatus(ctx, ids, "unread")
}

// setStarred drives the per-entry bookmark toggle. The toggle is not
// idempotent on its own, so the current starred set is consulted first
// and only entries in the wrong state are flipped.
func (m *Miniflux) setStarred(ctx context.Context, ids []string, starred bool) error {
	if len(ids) == 0 {
		return nil
	}
	current, err := m.GetStarredIDs(ctx)
	if err != nil {
		return err
	}
	isStarred := make(map[string]bool, len(current))
	for _, id := range current {
		isStarred[id] = true
	}
	for _, id := range ids {
		if isStarred[id] == starred {
			continue
		}
		if err := m.request(ctx, http.MethodPut, "/v1/entries/"+id+"/bookmark", nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// StarEntries stars the given entries.
func (m *Miniflux) StarEntries(ctx context.Context, ids []string) error {
	return m.setStarred(ctx, ids, true)
}

// UnstarEntries unstars the given entries.
func (m *Miniflux) UnstarEntries(ctx context.Context, ids []string) error {
	return m.setStarred(ctx, ids, false)
}

func parseInt64IDs(ids []string) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entry id %q: %w", id, err)
		}
		out = append(out, n)
	}
	return out, nil
}
