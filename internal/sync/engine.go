// ABOUTME: Reconciliation engine running pull, deletion detection, merge, push, commit cycles
// ABOUTME: Owns the synced-id sets and in-flight insert registry as instance state

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/storage"
)

// Backend is the remote relational surface the engine reconciles
// against.
type Backend interface {
	PullFeeds(ctx context.Context) ([]*models.Feed, error)
	PullItems(ctx context.Context) ([]*models.Item, error)
	UpsertFeeds(ctx context.Context, feeds []*models.Feed) error
	UpsertItems(ctx context.Context, items []*models.Item) error
}

// Engine reconciles the local catalog with the remote backend. All
// cycle state (synced-id sets, in-flight inserts) lives on the
// instance, so engines are independent and testable in isolation.
type Engine struct {
	backend Backend
	catalog *catalog.Store
	store   storage.Store
	logger  *log.Logger

	syncedFeedIDs map[string]struct{}
	syncedItemIDs map[string]struct{}
	inflight      *inflightRegistry
	queue         *WritebackQueue
	mirror        *Mirror

	// runGate serializes cycles; a cycle requested while one runs is
	// coalesced, not queued.
	runGate chan struct{}
}

// NewEngine builds an engine and restores the previous cycle's
// synced-id sets from storage.
func NewEngine(backend Backend, cat *catalog.Store, store storage.Store, logger *log.Logger) (*Engine, error) {
	e := &Engine{
		backend:       backend,
		catalog:       cat,
		store:         store,
		logger:        logger,
		syncedFeedIDs: make(map[string]struct{}),
		syncedItemIDs: make(map[string]struct{}),
		inflight:      newInflightRegistry(),
		runGate:       make(chan struct{}, 1),
	}
	if err := e.loadIDSet(storage.StateSyncedFeedIDs, e.syncedFeedIDs); err != nil {
		return nil, err
	}
	if err := e.loadIDSet(storage.StateSyncedItemIDs, e.syncedItemIDs); err != nil {
		return nil, err
	}
	e.queue = newWritebackQueue(backend, e.inflight, e.feedSyncedRemotely,
		cat.EmitSyncError, DefaultWritebackDelay, logger)
	return e, nil
}

// SetWritebackDelay overrides the debounce window.
func (e *Engine) SetWritebackDelay(d time.Duration) {
	e.queue.delay = d
}

// SetMirror attaches a provider mirror to run at the end of each cycle.
func (e *Engine) SetMirror(m *Mirror) {
	e.mirror = m
}

// Queue exposes the write-back queue for local status toggles.
func (e *Engine) Queue() *WritebackQueue {
	return e.queue
}

// LastSync returns the recorded completion time of the last cycle.
func (e *Engine) LastSync() (time.Time, error) {
	raw, err := e.store.GetState(storage.StateLastSync)
	if err != nil || raw == nil {
		return time.Time{}, err
	}
	var ts time.Time
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}, fmt.Errorf("decoding last sync time: %w", err)
	}
	return ts, nil
}

func (e *Engine) feedSyncedRemotely(feedID string) bool {
	_, ok := e.syncedFeedIDs[feedID]
	return ok
}

func (e *Engine) loadIDSet(key string, into map[string]struct{}) error {
	raw, err := e.store.GetState(key)
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if raw == nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	for _, id := range ids {
		into[id] = struct{}{}
	}
	return nil
}

func (e *Engine) saveIDSet(key string, set map[string]struct{}) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return e.store.SetState(key, raw)
}

// Reconcile runs one full pull, merge, push, commit cycle. A call made
// while another cycle is running returns immediately with ran=false.
// Pull failures abort the cycle; push failures are surfaced as sync
// errors and self-heal on the next cycle, since anything unpushed is
// still absent from the synced-id sets.
func (e *Engine) Reconcile(ctx context.Context) (ran bool, err error) {
	select {
	case e.runGate <- struct{}{}:
	default:
		e.logger.Debug("reconcile already running, coalescing request")
		return false, nil
	}
	defer func() { <-e.runGate }()

	// 1. Pull. Transport failure here is unrecoverable for the cycle.
	remoteFeeds, err := e.backend.PullFeeds(ctx)
	if err != nil {
		return true, fmt.Errorf("pulling remote feeds: %w", err)
	}
	remoteItems, err := e.backend.PullItems(ctx)
	if err != nil {
		return true, fmt.Errorf("pulling remote items: %w", err)
	}

	// 2. Deletion detection: previously synced but now absent remotely
	// means deleted elsewhere; those ids are dropped from the commit
	// and never re-pushed.
	remoteFeedIDs := make(map[string]struct{}, len(remoteFeeds))
	for _, feed := range remoteFeeds {
		remoteFeedIDs[feed.ID] = struct{}{}
	}
	remoteItemIDs := make(map[string]struct{}, len(remoteItems))
	for _, item := range remoteItems {
		remoteItemIDs[item.ID] = struct{}{}
	}
	deletedFeeds := missingIDs(e.syncedFeedIDs, remoteFeedIDs)
	deletedItems := missingIDs(e.syncedItemIDs, remoteItemIDs)
	if len(deletedFeeds) > 0 || len(deletedItems) > 0 {
		e.logger.Info("detected remote deletions", "feeds", len(deletedFeeds), "items", len(deletedItems))
	}

	// 3-4. Merge on in-memory copies only.
	localFeeds, localItems := e.catalog.Snapshot()
	localFeeds = dropFeeds(localFeeds, deletedFeeds)
	localItems = dropItems(localItems, deletedFeeds, deletedItems)

	feedResult := mergeFeeds(localFeeds, remoteFeeds)
	itemResult := mergeItems(localItems, remoteItems, feedResult.remap)

	// 5. Push merged records whose id is absent from the remote pull.
	// This covers local-only records and URL-collapsed records where
	// the winning id differs from the remote row, so a feed that kept
	// its local identity after a URL match still gets inserted. Feed
	// inserts register with the in-flight registry so the write-back
	// queue can await them.
	pushedFeeds := make(map[string]struct{})
	for _, feed := range feedResult.merged {
		if _, known := remoteFeedIDs[feed.ID]; known {
			continue
		}
		finish := e.inflight.begin(feed.ID)
		err := e.backend.UpsertFeeds(ctx, []*models.Feed{feed})
		finish(err)
		if err != nil {
			e.logger.Warn("feed push failed", "feed", feed.ID, "err", err)
			e.catalog.EmitSyncError("push-feeds", err.Error())
			continue
		}
		pushedFeeds[feed.ID] = struct{}{}
	}

	var pushableItems []*models.Item
	for _, item := range itemResult.merged {
		if _, known := remoteItemIDs[item.ID]; known {
			continue
		}
		// An item whose feed insert failed stays local this cycle.
		if _, remote := remoteFeedIDs[item.FeedID]; !remote {
			if _, pushed := pushedFeeds[item.FeedID]; !pushed {
				continue
			}
		}
		pushableItems = append(pushableItems, item)
	}
	pushedItems := true
	if err := e.backend.UpsertItems(ctx, pushableItems); err != nil {
		pushedItems = false
		e.logger.Warn("item push failed", "items", len(pushableItems), "err", err)
		e.catalog.EmitSyncError("push-items", err.Error())
	}

	// 6. Commit: the single durable mutation of the cycle.
	if err := e.catalog.ReplaceAll(feedResult.merged, itemResult.merged); err != nil {
		return true, err
	}

	e.syncedFeedIDs = make(map[string]struct{}, len(remoteFeedIDs)+len(pushedFeeds))
	for id := range remoteFeedIDs {
		e.syncedFeedIDs[id] = struct{}{}
	}
	for id := range pushedFeeds {
		e.syncedFeedIDs[id] = struct{}{}
	}
	e.syncedItemIDs = make(map[string]struct{}, len(remoteItemIDs))
	for id := range remoteItemIDs {
		e.syncedItemIDs[id] = struct{}{}
	}
	if pushedItems {
		for _, item := range pushableItems {
			e.syncedItemIDs[item.ID] = struct{}{}
		}
	}
	if err := e.saveIDSet(storage.StateSyncedFeedIDs, e.syncedFeedIDs); err != nil {
		return true, err
	}
	if err := e.saveIDSet(storage.StateSyncedItemIDs, e.syncedItemIDs); err != nil {
		return true, err
	}
	stamp, err := json.Marshal(time.Now())
	if err == nil {
		err = e.store.SetState(storage.StateLastSync, stamp)
	}
	if err != nil {
		return true, fmt.Errorf("recording sync time: %w", err)
	}

	e.logger.Info("reconcile complete",
		"feeds", len(feedResult.merged), "items", len(itemResult.merged),
		"pushed_feeds", len(pushedFeeds), "pushed_items", len(pushableItems))

	// Provider mirroring runs at the same cadence; its failures are
	// recoverable and never abort a completed cycle.
	if e.mirror != nil {
		if err := e.mirror.Cycle(ctx); err != nil {
			e.logger.Warn("provider mirror failed", "err", err)
			e.catalog.EmitSyncError("provider-mirror", err.Error())
		}
	}
	return true, nil
}

func missingIDs(previous, current map[string]struct{}) map[string]struct{} {
	missing := make(map[string]struct{})
	for id := range previous {
		if _, ok := current[id]; !ok {
			missing[id] = struct{}{}
		}
	}
	return missing
}

func dropFeeds(feeds []*models.Feed, deleted map[string]struct{}) []*models.Feed {
	kept := feeds[:0]
	for _, feed := range feeds {
		if _, gone := deleted[feed.ID]; !gone {
			kept = append(kept, feed)
		}
	}
	return kept
}

func dropItems(items []*models.Item, deletedFeeds, deletedItems map[string]struct{}) []*models.Item {
	kept := items[:0]
	for _, item := range items {
		if _, gone := deletedItems[item.ID]; gone {
			continue
		}
		if _, gone := deletedFeeds[item.FeedID]; gone {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
