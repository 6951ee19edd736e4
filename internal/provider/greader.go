// ABOUTME: Google-Reader-style provider shared by the freshrss and theoldreader kinds
// ABOUTME: ClientLogin session tokens, one-time edit tokens before mutations, one re-login retry on 401

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	theOldReaderBaseURL = "https://theoldreader.com"

	greaderStateRead    = "user/-/state/com.google/read"
	greaderStateStarred = "user/-/state/com.google/starred"
	greaderStreamAll    = "user/-/state/com.google/reading-list"
)

// errUnauthorized marks a 401 internally so the retry wrapper can
// distinguish it from other transport failures.
var errUnauthorized = errors.New("session rejected")

// GReader speaks the Google Reader clone protocol. Two provider kinds
// share it; they differ only in base URL.
type GReader struct {
	service  string
	baseURL  string
	username string
	password string
	client   *http.Client

	mu      sync.Mutex
	session string
}

// NewGReader constructs a provider for a greader-protocol service.
func NewGReader(cfg GReaderConfig) *GReader {
	baseURL := cfg.BaseURL
	if baseURL == "" && cfg.Service == KindTheOldReader {
		baseURL = theOldReaderBaseURL
	}
	return &GReader{
		service:  cfg.Service,
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind returns the configured service kind.
func (g *GReader) Kind() string { return g.service }

// login exchanges credentials for a session token. The response body
// is line-oriented; the token is on the Auth= line.
func (g *GReader) login(ctx context.Context) error {
	form := url.Values{
		"Email":  {g.username},
		"Passwd": {g.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/accounts/ClientLogin", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s login: %w", g.service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login returned %d", ErrAuthFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}
	for _, line := range strings.Split(string(body), "\n") {
		if token, ok := strings.CutPrefix(strings.TrimSpace(line), "Auth="); ok && token != "" {
			g.mu.Lock()
			g.session = token
			g.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: login response had no Auth line", ErrAuthFailed)
}

// do performs one authenticated request. A missing session triggers a
// login first; a 401 response comes back as errUnauthorized.
func (g *GReader) do(ctx context.Context, method, path string, form url.Values, out any) error {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()
	if session == "" {
		if err := g.login(ctx); err != nil {
			return err
		}
		g.mu.Lock()
		session = g.session
		g.mu.Unlock()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+session)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", g.service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s %s: status %d", g.service, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	switch dest := out.(type) {
	case *string:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		*dest = strings.TrimSpace(string(raw))
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", g.service, err)
		}
		return nil
	}
}

// call runs do with the protocol's 401 policy: exactly one re-login
// and retry, then the failure surfaces as an auth error.
func (g *GReader) call(ctx context.Context, method, path string, form url.Values, out any) error {
	err := g.do(ctx, method, path, form, out)
	if !errors.Is(err, errUnauthorized) {
		return err
	}
	if err := g.login(ctx); err != nil {
		return err
	}
	err = g.do(ctx, method, path, form, out)
	if errors.Is(err, errUnauthorized) {
		return fmt.Errorf("%w: session rejected after re-login", ErrAuthFailed)
	}
	return err
}

// editToken fetches the short-lived token required before a mutation.
func (g *GReader) editToken(ctx context.Context) (string, error) {
	var token string
	if err := g.call(ctx, http.MethodGet, "/api/0/token", nil, &token); err != nil {
		return "", err
	}
	return token, nil
}

// TestConnection verifies credentials by logging in and listing
// subscriptions.
func (g *GReader) TestConnection(ctx context.Context) error {
	if err := g.login(ctx); err != nil {
		return err
	}
	_, err := g.GetFeeds(ctx)
	return err
}

type greaderSubscription struct {
	ID      string `json:"id"` // "feed/<url or id>"
	Title   string `json:"title"`
	URL     string `json:"url"`
	HTMLURL string `json:"htmlUrl"`
}

// GetFeeds lists all subscriptions.
func (g *GReader) GetFeeds(ctx context.Context) ([]RemoteFeed, error) {
	var payload struct {
		Subscriptions []greaderSubscription `json:"subscriptions"`
	}
	if err := g.call(ctx, http.MethodGet, "/api/0/subscription/list?output=json", nil, &payload); err != nil {
		return nil, err
	}
	feeds := make([]RemoteFeed, 0, len(payload.Subscriptions))
	for _, sub := range payload.Subscriptions {
		feeds = append(feeds, RemoteFeed{
			ID:      sub.ID,
			Title:   sub.Title,
			FeedURL: sub.URL,
			SiteURL: sub.HTMLURL,
		})
	}
	return feeds, nil
}

func (g *GReader) streamIDs(ctx context.Context, query url.Values) ([]string, error) {
	var payload struct {
		ItemRefs []struct {
			ID string `json:"id"`
		} `json:"itemRefs"`
	}
	if err := g.call(ctx, http.MethodGet, "/api/0/stream/items/ids?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.ItemRefs))
	for _, ref := range payload.ItemRefs {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// GetUnreadIDs lists ids in the reading list that do not carry the
// read state.
func (g *GReader) GetUnreadIDs(ctx context.Context) ([]string, error) {
	return g.streamIDs(ctx, url.Values{
		"s":      {greaderStreamAll},
		"xt":     {greaderStateRead},
		"n":      {"10000"},
		"output": {"json"},
	})
}

// GetStarredIDs lists ids carrying the starred state.
func (g *GReader) GetStarredIDs(ctx context.Context) ([]string, error) {
	return g.streamIDs(ctx, url.Values{
		"s":      {greaderStateStarred},
		"n":      {"10000"},
		"output": {"json"},
	})
}

type greaderItem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	Published  int64    `json:"published"`
	Categories []string `json:"categories"`
	Origin     struct {
		StreamID string `json:"streamId"`
	} `json:"origin"`
	Canonical []struct {
		Href string `json:"href"`
	} `json:"canonical"`
	Alternate []struct {
		Href string `json:"href"`
	} `json:"alternate"`
	Summary struct {
		Content string `json:"content"`
	} `json:"summary"`
}

// GetEntries fetches recent reading-list items.
func (g *GReader) GetEntries(ctx context.Context, since time.Time, limit int) ([]RemoteEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := url.Values{
		"n":      {strconv.Itoa(limit)},
		"output": {"json"},
	}
	if !since.IsZero() {
		query.Set("ot", strconv.FormatInt(since.Unix(), 10))
	}
	var payload struct {
		Items []greaderItem `json:"items"`
	}
	path := "/api/0/stream/contents/" + url.PathEscape(greaderStreamAll) + "?" + query.Encode()
	if err := g.call(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	entries := make([]RemoteEntry, 0, len(payload.Items))
	for _, item := range payload.Items {
		entry := RemoteEntry{
			ID:      item.ID,
			FeedID:  item.Origin.StreamID,
			Title:   item.Title,
			Author:  item.Author,
			Content: item.Summary.Content,
		}
		if len(item.Canonical) > 0 {
			entry.URL = item.Canonical[0].Href
		} else if len(item.Alternate) > 0 {
			entry.URL = item.Alternate[0].Href
		}
		if item.Published > 0 {
			ts := time.Unix(item.Published, 0)
			entry.PublishedAt = &ts
		}
		for _, cat := range item.Categories {
			switch cat {
			case greaderStateRead:
				entry.Read = true
			case greaderStateStarred:
				entry.Starred = true
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// editTag applies or removes a state on a batch of items. Every call
// fetches a fresh one-time edit token first.
func (g *GReader) editTag(ctx context.Context, ids []string, add, remove string) error {
	if len(ids) == 0 {
		return nil
	}
	token, err := g.editToken(ctx)
	if err != nil {
		return err
	}
	form := url.Values{"T": {token}}
	for _, id := range ids {
		form.Add("i", id)
	}
	if add != "" {
		form.Set("a", add)
	}
	if remove != "" {
		form.Set("r", remove)
	}
	return g.call(ctx, http.MethodPost, "/api/0/edit-tag", form, nil)
}

// MarkAsRead adds the read state to the given items.
func (g *GReader) MarkAsRead(ctx context.Context, ids []string) error {
	return g.editTag(ctx, ids, greaderStateRead, "")
}

// MarkAsUnread removes the read state from the given items.
func (g *GReader) MarkAsUnread(ctx context.Context, ids []string) error {
	return g.editTag(ctx, ids, "", greaderStateRead)
}

// StarEntries adds the starred state to the given items.
func (g *GReader) StarEntries(ctx context.Context, ids []string) error {
	return g.editTag(ctx, ids, greaderStateStarred, "")
}

// UnstarEntries removes the starred state from the given items.
func (g *GReader) UnstarEntries(ctx context.Context, ids []string) error {
	return g.editTag(ctx, ids, "", greaderStateStarred)
}
