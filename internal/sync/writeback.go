// ABOUTME: Debounced write-back queue batching local status toggles into one remote upsert
// ABOUTME: Awaits in-flight feed inserts before flushing so pushes never race a missing feed row

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/superflux/internal/models"
)

// DefaultWritebackDelay is the debounce window for status toggles.
const DefaultWritebackDelay = 2 * time.Second

// inflightResult is the outcome of one remote feed insert.
type inflightResult struct {
	done chan struct{}
	err  error
}

// inflightRegistry tracks remote feed inserts that have started but
// not finished. The Engine owns the registry and shares it with the
// write-back queue by reference; there is no package-level state.
type inflightRegistry struct {
	mu      sync.Mutex
	inserts map[string]*inflightResult
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{inserts: make(map[string]*inflightResult)}
}

// begin registers an in-flight insert for a feed and returns the
// completion callback.
func (r *inflightRegistry) begin(feedID string) func(error) {
	res := &inflightResult{done: make(chan struct{})}
	r.mu.Lock()
	r.inserts[feedID] = res
	r.mu.Unlock()
	return func(err error) {
		res.err = err
		close(res.done)
		if err == nil {
			r.mu.Lock()
			delete(r.inserts, feedID)
			r.mu.Unlock()
		}
	}
}

// await blocks until the feed's in-flight insert (if any) completes
// and reports its outcome. tracked is false when no insert was ever
// registered for the feed.
func (r *inflightRegistry) await(ctx context.Context, feedID string) (err error, tracked bool) {
	r.mu.Lock()
	res, ok := r.inserts[feedID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-res.done:
		return res.err, true
	case <-ctx.Done():
		return ctx.Err(), true
	}
}

// WritebackQueue accumulates the latest copy of each locally toggled
// item and flushes the whole set as one chunked upsert after a quiet
// period. Items whose feed is not yet known remotely are withheld and
// stay pending rather than being dropped.
type WritebackQueue struct {
	backend  Backend
	inflight *inflightRegistry
	remote   func(feedID string) bool
	onError  func(op, message string)
	delay    time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pending map[string]*models.Item
	timer   *time.Timer
}

// newWritebackQueue wires a queue to the engine's registry and
// remote-feed predicate.
func newWritebackQueue(backend Backend, inflight *inflightRegistry, remote func(string) bool, onError func(op, message string), delay time.Duration, logger *log.Logger) *WritebackQueue {
	return &WritebackQueue{
		backend:  backend,
		inflight: inflight,
		remote:   remote,
		onError:  onError,
		delay:    delay,
		logger:   logger,
		pending:  make(map[string]*models.Item),
	}
}

// Touch records the latest state of an item and restarts the debounce
// timer. Repeated touches on the same item within the window coalesce
// into a single flush of the final state.
func (q *WritebackQueue) Touch(item *models.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[item.ID] = item.Clone()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.delay, func() {
		if err := q.Flush(context.Background()); err != nil {
			q.logger.Warn("write-back flush failed", "err", err)
		}
	})
}

// Pending reports how many items are waiting to be flushed.
func (q *WritebackQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop cancels any scheduled flush. Pending items stay queued.
func (q *WritebackQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// Flush pushes every pending item whose feed exists remotely as one
// batched upsert. Items referencing a feed whose insert is still in
// flight wait for that insert; if it failed or never happened, those
// items return to the pending map for a later cycle.
func (q *WritebackQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	batch := q.pending
	q.pending = make(map[string]*models.Item)
	q.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var flushable, withheld []*models.Item
	feedReady := make(map[string]bool)
	for _, item := range batch {
		ready, checked := feedReady[item.FeedID]
		if !checked {
			ready = q.feedExistsRemotely(ctx, item.FeedID)
			feedReady[item.FeedID] = ready
		}
		if ready {
			flushable = append(flushable, item)
		} else {
			withheld = append(withheld, item)
		}
	}

	if len(withheld) > 0 {
		q.logger.Warn("withholding items pending their feed insert", "count", len(withheld))
		q.requeue(withheld)
	}
	if len(flushable) == 0 {
		return nil
	}
	if err := q.backend.UpsertItems(ctx, flushable); err != nil {
		// Never drop a toggle: the whole batch goes back in the map.
		q.requeue(flushable)
		q.onError("write-back", err.Error())
		return err
	}
	q.logger.Debug("flushed write-back batch", "items", len(flushable))
	return nil
}

// feedExistsRemotely answers whether pushing items for this feed is
// safe. A feed with an in-flight insert blocks until that insert
// resolves.
func (q *WritebackQueue) feedExistsRemotely(ctx context.Context, feedID string) bool {
	if err, tracked := q.inflight.await(ctx, feedID); tracked {
		return err == nil
	}
	return q.remote(feedID)
}

// requeue puts items back without clobbering any newer touch that
// arrived while the flush ran.
func (q *WritebackQueue) requeue(items []*models.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		if _, exists := q.pending[item.ID]; !exists {
			q.pending[item.ID] = item
		}
	}
}
