// ABOUTME: Integration tests for the full feed workflow
// ABOUTME: Exercises ingest, catalog, OPML, and two-device reconciliation end to end

package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/ingest"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/opml"
	"github.com/harper/superflux/internal/storage"
	syncer "github.com/harper/superflux/internal/sync"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Integration Gazette</title>
    <link>https://example.com</link>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <guid>https://example.com/first</guid>
      <description>The first story.</description>
      <pubDate>Mon, 18 Aug 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/second</link>
      <guid>https://example.com/second</guid>
      <description>The second story.</description>
      <pubDate>Tue, 19 Aug 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Third Post</title>
      <link>https://example.com/third</link>
      <guid>https://example.com/third</guid>
      <description>The third story.</description>
      <pubDate>Wed, 20 Aug 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

// memoryBackend is an in-process stand-in for the relational backend,
// shared between the two "devices" in the convergence test.
type memoryBackend struct {
	mu    stdsync.Mutex
	feeds map[string]*models.Feed
	items map[string]*models.Item
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		feeds: make(map[string]*models.Feed),
		items: make(map[string]*models.Item),
	}
}

func (b *memoryBackend) PullFeeds(ctx context.Context) ([]*models.Feed, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.Feed, 0, len(b.feeds))
	for _, f := range b.feeds {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (b *memoryBackend) PullItems(ctx context.Context) ([]*models.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.Item, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

func (b *memoryBackend) UpsertFeeds(ctx context.Context, feeds []*models.Feed) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range feeds {
		b.feeds[f.ID] = f.Clone()
	}
	return nil
}

func (b *memoryBackend) UpsertItems(ctx context.Context, items []*models.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range items {
		b.items[it.ID] = it.Clone()
	}
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// TestFullWorkflow covers subscribe, fetch, dedup on refetch, and OPML
// round trip against a local fixture server.
func TestFullWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer srv.Close()

	cat, err := catalog.Open(storage.NewMemory())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}

	feed := models.NewFeed(srv.URL, models.SourceArticle)
	if err := cat.AddFeed(feed); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	client := fetch.NewClient()
	adapter := ingest.ForKind(feed.SourceKind, client)

	known := models.NewKeySet()
	items, err := adapter.Fetch(context.Background(), feed, known)
	if err != nil {
		t.Fatalf("adapter.Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("fetched %d items, want 3", len(items))
	}
	if feed.Name != "Integration Gazette" {
		t.Errorf("feed name = %q, want the upstream title", feed.Name)
	}

	accepted, err := cat.MergeIncomingItems(items)
	if err != nil {
		t.Fatalf("MergeIncomingItems: %v", err)
	}
	if len(accepted) != 3 {
		t.Fatalf("accepted %d items, want 3", len(accepted))
	}

	// Refetch with the catalog contents as the known set: everything
	// is a duplicate, nothing is accepted a second time.
	known = models.NewKeySet()
	for _, item := range cat.ItemsForFeed(feed.ID) {
		known.Add(item)
	}
	again, err := adapter.Fetch(context.Background(), feed, known)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second fetch returned %d items, want 0", len(again))
	}

	// OPML round trip preserves the subscription and its folder.
	if err := cat.MoveFeedToFolder(feed.ID, "news"); err != nil {
		t.Fatalf("MoveFeedToFolder: %v", err)
	}
	doc := opml.NewDocument("superflux")
	moved, err := cat.Feed(feed.ID)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if err := doc.AddFeed(moved.EndpointURL, moved.Name, moved.FolderPath); err != nil {
		t.Fatalf("doc.AddFeed: %v", err)
	}
	opmlPath := filepath.Join(t.TempDir(), "feeds.opml")
	if err := doc.WriteFile(opmlPath); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	parsed, err := opml.ParseFile(opmlPath)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	feeds := parsed.AllFeeds()
	if len(feeds) != 1 || feeds[0].URL != srv.URL || feeds[0].Folder != "news" {
		t.Errorf("OPML round trip = %+v, want one feed %s in folder news", feeds, srv.URL)
	}
}

// TestTwoDeviceConvergence reconciles two independent catalogs through
// one shared backend and checks that feeds, items, and a later read
// flag all converge.
func TestTwoDeviceConvergence(t *testing.T) {
	backend := newMemoryBackend()

	openDevice := func() (*catalog.Store, *syncer.Engine) {
		t.Helper()
		mem := storage.NewMemory()
		cat, err := catalog.Open(mem)
		if err != nil {
			t.Fatalf("catalog.Open: %v", err)
		}
		engine, err := syncer.NewEngine(backend, cat, mem, quietLogger())
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		return cat, engine
	}

	catA, engineA := openDevice()
	catB, engineB := openDevice()

	// Device A subscribes and fetches locally.
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	feed.Name = "Shared Feed"
	if err := catA.AddFeed(feed); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}
	item := models.NewItem(feed.ID, "Converging Post")
	item.URL = "https://example.com/post"
	if _, err := catA.MergeIncomingItems([]*models.Item{item}); err != nil {
		t.Fatalf("MergeIncomingItems: %v", err)
	}

	ctx := context.Background()
	if _, err := engineA.Reconcile(ctx); err != nil {
		t.Fatalf("device A reconcile: %v", err)
	}
	if _, err := engineB.Reconcile(ctx); err != nil {
		t.Fatalf("device B reconcile: %v", err)
	}

	feedsB := catB.Feeds()
	if len(feedsB) != 1 || feedsB[0].EndpointURL != feed.EndpointURL {
		t.Fatalf("device B feeds = %+v, want the shared feed", feedsB)
	}
	itemsB := catB.Items()
	if len(itemsB) != 1 || itemsB[0].Title != "Converging Post" {
		t.Fatalf("device B items = %+v, want the shared item", itemsB)
	}

	// Device B reads the item. Flag changes travel through the
	// write-back queue, not the reconcile push, so touch and flush the
	// queue before device A's next cycle.
	if err := catB.MutateItem(itemsB[0].ID, func(it *models.Item) {
		it.IsRead = true
	}); err != nil {
		t.Fatalf("MutateItem: %v", err)
	}
	updated, err := catB.Item(itemsB[0].ID)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	queue := engineB.Queue()
	queue.Touch(updated)
	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("queue flush: %v", err)
	}
	queue.Stop()

	if _, err := engineA.Reconcile(ctx); err != nil {
		t.Fatalf("device A second reconcile: %v", err)
	}

	itemsA := catA.Items()
	if len(itemsA) != 1 || !itemsA[0].IsRead {
		t.Errorf("device A items = %+v, want the item marked read", itemsA)
	}
}
