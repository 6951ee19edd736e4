// ABOUTME: Tests for the catalog store covering dedup, folders, and observers
// ABOUTME: Runs against the in-memory storage backend

package catalog_test

import (
	"fmt"
	"testing"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/storage"
)

func openCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(storage.NewMemory())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestAddFeedRejectsDuplicateURL(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatalf("AddFeed() error = %v", err)
	}
	dup := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(dup); err != catalog.ErrDuplicateFeed {
		t.Errorf("AddFeed(duplicate) error = %v, want ErrDuplicateFeed", err)
	}
}

func TestRemoveFeedCascadesToItems(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	other := models.NewFeed("https://other.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFeed(other); err != nil {
		t.Fatal(err)
	}
	batch := []*models.Item{
		models.NewItem(feed.ID, "One"),
		models.NewItem(feed.ID, "Two"),
		models.NewItem(other.ID, "Elsewhere"),
	}
	if _, err := s.MergeIncomingItems(batch); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveFeed(feed.ID); err != nil {
		t.Fatalf("RemoveFeed() error = %v", err)
	}
	if got := len(s.Items()); got != 1 {
		t.Errorf("after cascade: %d items remain, want 1", got)
	}
	if got := len(s.ItemsForFeed(feed.ID)); got != 0 {
		t.Errorf("removed feed still has %d items", got)
	}
}

func TestMergeIncomingItemsDedupByEachKey(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}

	first := models.NewItem(feed.ID, "Original")
	first.URL = "https://example.com/p/1"
	if _, err := s.MergeIncomingItems([]*models.Item{first}); err != nil {
		t.Fatal(err)
	}

	sameID := first.Clone()
	sameID.Title = "Renamed"
	sameID.URL = "https://example.com/p/other"

	sameURL := models.NewItem(feed.ID, "Totally different title")
	sameURL.URL = "https://example.com/p/1"

	sameTitle := models.NewItem(feed.ID, "  ORIGINAL ")
	sameTitle.URL = "https://example.com/p/2"

	fresh := models.NewItem(feed.ID, "Brand new")
	fresh.URL = "https://example.com/p/3"

	accepted, err := s.MergeIncomingItems([]*models.Item{sameID, sameURL, sameTitle, fresh})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].ID != fresh.ID {
		t.Errorf("accepted = %d items, want only the fresh item", len(accepted))
	}
}

func TestMergeIncomingItemsFirstOccurrenceWinsWithinBatch(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	a := models.NewItem(feed.ID, "Hello")
	b := models.NewItem(feed.ID, "hello") // same normalized title, later in batch
	accepted, err := s.MergeIncomingItems([]*models.Item{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].ID != a.ID {
		t.Fatalf("accepted = %v, want only the first occurrence", accepted)
	}
	// Re-merging the same batch must accept nothing.
	again, err := s.MergeIncomingItems([]*models.Item{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("re-merge accepted %d items, want 0", len(again))
	}
}

func TestImportFeedsSkipsDuplicates(t *testing.T) {
	s := openCatalog(t)
	// Three of the fifty imported URLs already exist in the catalog.
	for i := 0; i < 3; i++ {
		existing := models.NewFeed(fmt.Sprintf("https://example.com/feed%d.xml", i), models.SourceArticle)
		if err := s.AddFeed(existing); err != nil {
			t.Fatal(err)
		}
	}
	var batch []*models.Feed
	for i := 0; i < 50; i++ {
		batch = append(batch, models.NewFeed(fmt.Sprintf("https://example.com/feed%d.xml", i), models.SourceArticle))
	}

	added, skipped, err := s.ImportFeeds(batch)
	if err != nil {
		t.Fatal(err)
	}
	if added != 47 || skipped != 3 {
		t.Errorf("ImportFeeds() = %d added, %d skipped; want 47 added, 3 skipped", added, skipped)
	}
}

func TestUnreadCountDerivedFromItems(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for i := 0; i < 3; i++ {
		item := models.NewItem(feed.ID, fmt.Sprintf("Post %d", i))
		item.URL = fmt.Sprintf("https://example.com/p/%d", i)
		ids = append(ids, item.ID)
		if _, err := s.MergeIncomingItems([]*models.Item{item}); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.UnreadCount(feed.ID); got != 3 {
		t.Fatalf("UnreadCount = %d, want 3", got)
	}
	if err := s.MutateItem(ids[0], func(item *models.Item) { item.IsRead = true }); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount(feed.ID); got != 2 {
		t.Errorf("UnreadCount after read = %d, want 2", got)
	}
	counts := s.UnreadCounts()
	if counts[feed.ID] != 2 {
		t.Errorf("UnreadCounts[feed] = %d, want 2", counts[feed.ID])
	}
}

func TestRenameFolderCascades(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	nested := models.NewFeed("https://example.com/nested.xml", models.SourceArticle)
	outside := models.NewFeed("https://example.com/outside.xml", models.SourceArticle)
	for _, f := range []*models.Feed{feed, nested, outside} {
		if err := s.AddFeed(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MoveFeedToFolder(feed.ID, "tech"); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFeedToFolder(nested.ID, "tech/go"); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFeedToFolder(outside.ID, "news"); err != nil {
		t.Fatal(err)
	}

	if err := s.RenameFolder("tech", "engineering"); err != nil {
		t.Fatalf("RenameFolder() error = %v", err)
	}

	got, err := s.Feed(nested.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FolderPath != "engineering/go" {
		t.Errorf("nested feed folder = %q, want engineering/go", got.FolderPath)
	}
	got, err = s.Feed(outside.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FolderPath != "news" {
		t.Errorf("outside feed folder = %q, want news", got.FolderPath)
	}
	for _, path := range s.Folders() {
		if path == "tech" || path == "tech/go" {
			t.Errorf("old folder path %q still present", path)
		}
	}
}

func TestRemoveFolderMovesFeedsToRoot(t *testing.T) {
	s := openCatalog(t)
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFeedToFolder(feed.ID, "tech/go"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveFolder("tech"); err != nil {
		t.Fatalf("RemoveFolder() error = %v", err)
	}
	got, err := s.Feed(feed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FolderPath != "" {
		t.Errorf("feed folder = %q, want root", got.FolderPath)
	}
	if len(s.Folders()) != 0 {
		t.Errorf("folders = %v, want none", s.Folders())
	}
}

func TestObserversReceiveEvents(t *testing.T) {
	s := openCatalog(t)
	var events []catalog.Event
	s.OnChange(func(ev catalog.Event) { events = append(events, ev) })

	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	s.EmitSyncError("push-items", "backend unreachable")

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != catalog.EventCatalogUpdated {
		t.Errorf("first event = %q, want catalog-updated", events[0].Kind)
	}
	if events[1].Kind != catalog.EventSyncError || events[1].Op != "push-items" {
		t.Errorf("second event = %+v, want sync-error for push-items", events[1])
	}
}

func TestCatalogSurvivesReload(t *testing.T) {
	mem := storage.NewMemory()
	s, err := catalog.Open(mem)
	if err != nil {
		t.Fatal(err)
	}
	feed := models.NewFeed("https://example.com/feed.xml", models.SourceArticle)
	if err := s.AddFeed(feed); err != nil {
		t.Fatal(err)
	}
	item := models.NewItem(feed.ID, "Persisted")
	if _, err := s.MergeIncomingItems([]*models.Item{item}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateFolder("tech"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := catalog.Open(mem)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if len(reloaded.Feeds()) != 1 || len(reloaded.Items()) != 1 {
		t.Errorf("reloaded %d feeds, %d items; want 1 and 1", len(reloaded.Feeds()), len(reloaded.Items()))
	}
	if got := reloaded.Folders(); len(got) != 1 || got[0] != "tech" {
		t.Errorf("reloaded folders = %v, want [tech]", got)
	}
}
