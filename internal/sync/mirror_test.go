// ABOUTME: Mirror tests using a fake reader-service provider
// ABOUTME: Verifies URL linking, remote flag adoption, and locally-newer pushes

package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/provider"
	"github.com/harper/superflux/internal/storage"
	syncer "github.com/harper/superflux/internal/sync"
)

type fakeProvider struct {
	entries    []provider.RemoteEntry
	unread     []string
	starred    []string
	markedRead [][]string
	starredOps [][]string
}

func (f *fakeProvider) Kind() string                             { return "fake" }
func (f *fakeProvider) TestConnection(ctx context.Context) error { return nil }
func (f *fakeProvider) GetFeeds(ctx context.Context) ([]provider.RemoteFeed, error) {
	return nil, nil
}
func (f *fakeProvider) GetUnreadIDs(ctx context.Context) ([]string, error)  { return f.unread, nil }
func (f *fakeProvider) GetStarredIDs(ctx context.Context) ([]string, error) { return f.starred, nil }
func (f *fakeProvider) GetEntries(ctx context.Context, since time.Time, limit int) ([]provider.RemoteEntry, error) {
	return f.entries, nil
}
func (f *fakeProvider) MarkAsRead(ctx context.Context, ids []string) error {
	if len(ids) > 0 {
		f.markedRead = append(f.markedRead, ids)
	}
	return nil
}
func (f *fakeProvider) MarkAsUnread(ctx context.Context, ids []string) error { return nil }
func (f *fakeProvider) StarEntries(ctx context.Context, ids []string) error {
	if len(ids) > 0 {
		f.starredOps = append(f.starredOps, ids)
	}
	return nil
}
func (f *fakeProvider) UnstarEntries(ctx context.Context, ids []string) error { return nil }

func TestMirrorAdoptsRemoteFlagsForUntouchedItems(t *testing.T) {
	store := storage.NewMemory()
	cat, err := catalog.Open(store)
	if err != nil {
		t.Fatal(err)
	}
	feed := models.NewFeed("https://example.com/f.xml", models.SourceArticle)
	if err := cat.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	item := models.NewItem(feed.ID, "Linked post")
	item.URL = "https://example.com/p/1"
	if _, err := cat.MergeIncomingItems([]*models.Item{item}); err != nil {
		t.Fatal(err)
	}

	p := &fakeProvider{
		entries: []provider.RemoteEntry{{ID: "e1", URL: "https://example.com/p/1"}},
		unread:  nil, // entry e1 is read remotely
		starred: []string{"e1"},
	}
	mirror := syncer.NewMirror(p, cat, store, quietLogger())

	// First pass links and seeds the last-mirror stamp.
	if err := mirror.Cycle(context.Background()); err != nil {
		t.Fatalf("first Cycle() error = %v", err)
	}
	// Second pass: the item was not touched since the first pass, so
	// remote state wins.
	if err := mirror.Cycle(context.Background()); err != nil {
		t.Fatalf("second Cycle() error = %v", err)
	}

	got, err := cat.Item(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsRead || !got.IsStarred {
		t.Errorf("item flags = read=%v starred=%v, want both true from remote", got.IsRead, got.IsStarred)
	}
}

func TestMirrorPushesLocallyNewerFlags(t *testing.T) {
	store := storage.NewMemory()
	cat, err := catalog.Open(store)
	if err != nil {
		t.Fatal(err)
	}
	feed := models.NewFeed("https://example.com/f.xml", models.SourceArticle)
	if err := cat.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	item := models.NewItem(feed.ID, "Linked post")
	item.URL = "https://example.com/p/1"
	if _, err := cat.MergeIncomingItems([]*models.Item{item}); err != nil {
		t.Fatal(err)
	}

	p := &fakeProvider{
		entries: []provider.RemoteEntry{{ID: "e1", URL: "https://example.com/p/1"}},
		unread:  []string{"e1"},
	}
	mirror := syncer.NewMirror(p, cat, store, quietLogger())
	if err := mirror.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Toggle locally after the mirror pass, then run another pass.
	if err := cat.MutateItem(item.ID, func(it *models.Item) {
		it.IsRead = true
		it.IsStarred = true
	}); err != nil {
		t.Fatal(err)
	}
	if err := mirror.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(p.markedRead) != 1 || p.markedRead[0][0] != "e1" {
		t.Errorf("markedRead = %v, want one push of e1", p.markedRead)
	}
	if len(p.starredOps) != 1 || p.starredOps[0][0] != "e1" {
		t.Errorf("starredOps = %v, want one push of e1", p.starredOps)
	}
}
