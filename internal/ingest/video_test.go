// ABOUTME: Tests for the video-channel adapter
// ABOUTME: Covers handle resolution via canonical link and direct channel URLs

package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/ingest"
	"github.com/harper/superflux/internal/models"
)

const channelFeedXML = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:yt="http://www.youtube.com/xml/schemas/2015">
  <title>Example Channel</title>
  <entry>
    <title>New Upload</title>
    <link rel="alternate" href="https://video.example/watch?v=abc123"/>
    <id>yt:video:abc123</id>
    <published>2026-08-28T12:00:00+00:00</published>
  </entry>
</feed>`

func newVideoServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/@example", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><link rel="canonical" href="%s/channel/UCexample123"></head><body></body></html>`, server.URL)
	})
	mux.HandleFunc("/feeds/videos.xml", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("channel_id"); id != "UCexample123" {
			t.Errorf("unexpected channel_id %q", id)
		}
		w.Write([]byte(channelFeedXML))
	})
	server = httptest.NewServer(mux)
	return server
}

func TestVideoAdapter_ResolvesHandle(t *testing.T) {
	server := newVideoServer(t)
	defer server.Close()

	feed := models.NewFeed(server.URL+"/@example", models.SourceVideo)
	adapter := ingest.ForKind(feed.SourceKind, fetch.NewClient())

	items, err := adapter.Fetch(context.Background(), feed, models.NewKeySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "New Upload" {
		t.Errorf("unexpected title: %q", items[0].Title)
	}
	if items[0].SourceKind != models.SourceVideo {
		t.Errorf("item should keep the video kind, got %q", items[0].SourceKind)
	}
	if feed.Name != "Example Channel" {
		t.Errorf("feed name not taken from channel feed: %q", feed.Name)
	}
}

func TestVideoAdapter_DirectChannelURL(t *testing.T) {
	server := newVideoServer(t)
	defer server.Close()

	// Direct /channel/<id> URL resolves without scraping the page.
	feed := models.NewFeed(server.URL+"/channel/UCexample123", models.SourceVideo)
	adapter := ingest.ForKind(feed.SourceKind, fetch.NewClient())

	items, err := adapter.Fetch(context.Background(), feed, models.NewKeySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}
