// ABOUTME: Tests for the social-timeline adapter
// ABOUTME: Simulates a Mastodon-compatible instance including rate-limit responses

package ingest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/ingest"
	"github.com/harper/superflux/internal/models"
)

func newSocialServer(t *testing.T, rateLimitStatuses bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/lookup", func(w http.ResponseWriter, r *http.Request) {
		if acct := r.URL.Query().Get("acct"); acct != "kernel" {
			t.Errorf("unexpected acct %q", acct)
		}
		w.Write([]byte(`{"id":"42","acct":"kernel","display_name":"Kernel News"}`))
	})
	mux.HandleFunc("/api/v1/accounts/42/statuses", func(w http.ResponseWriter, r *http.Request) {
		if rateLimitStatuses {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[
			{"id":"1001","created_at":"2026-08-30T10:00:00Z","url":"https://social.example/@kernel/1001",
			 "content":"<p>Release 6.18 is out with plenty of fixes</p>","account":{"acct":"kernel","display_name":"Kernel News"}},
			{"id":"1000","created_at":"2026-08-29T09:00:00Z","url":"https://social.example/@kernel/1000",
			 "content":"<p>Merge window opened</p>","spoiler_text":"Dev update","account":{"acct":"kernel"}}
		]`))
	})
	return httptest.NewServer(mux)
}

func TestSocialAdapter_Fetch(t *testing.T) {
	server := newSocialServer(t, false)
	defer server.Close()

	feed := models.NewFeed(server.URL+"/@kernel", models.SourceSocial)
	adapter := ingest.ForKind(feed.SourceKind, fetch.NewClient())

	items, err := adapter.Fetch(context.Background(), feed, models.NewKeySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if feed.Name != "Kernel News" {
		t.Errorf("feed name not resolved: %q", feed.Name)
	}
	if items[0].URL != "https://social.example/@kernel/1001" {
		t.Errorf("unexpected url: %q", items[0].URL)
	}
	if items[1].Title != "Dev update" {
		t.Errorf("spoiler text should become the title, got %q", items[1].Title)
	}
	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if items[0].PublishedAt == nil || !items[0].PublishedAt.Equal(want) {
		t.Errorf("unexpected published time: %v", items[0].PublishedAt)
	}
	if items[1].Author != "@kernel" {
		t.Errorf("expected acct fallback author, got %q", items[1].Author)
	}
}

func TestSocialAdapter_RateLimited(t *testing.T) {
	server := newSocialServer(t, true)
	defer server.Close()

	feed := models.NewFeed(server.URL+"/@kernel", models.SourceSocial)
	adapter := ingest.ForKind(feed.SourceKind, fetch.NewClientWithBackoff(time.Millisecond))

	_, err := adapter.Fetch(context.Background(), feed, nil)
	if !errors.Is(err, fetch.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after bounded retries, got %v", err)
	}
}

func TestSocialAdapter_BadProfileURL(t *testing.T) {
	feed := models.NewFeed("https://social.example/about", models.SourceSocial)
	adapter := ingest.ForKind(feed.SourceKind, fetch.NewClient())

	if _, err := adapter.Fetch(context.Background(), feed, nil); err == nil {
		t.Fatal("expected error for profile URL without a handle")
	}
}
