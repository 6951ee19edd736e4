// ABOUTME: Provider mirror linking local items to reader-service entries by URL
// ABOUTME: Applies newer-wins to read/star flags and pushes batched status mutations

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/provider"
	"github.com/harper/superflux/internal/storage"
)

const stateLastMirror = "last-mirror"

// Mirror keeps local read/star flags in step with a configured
// reader-service provider. Identity linking is by item URL; the
// resulting id map persists so linked items stay linked across runs.
type Mirror struct {
	provider provider.Provider
	catalog  *catalog.Store
	store    storage.Store
	logger   *log.Logger
}

// NewMirror wires a mirror to a provider.
func NewMirror(p provider.Provider, cat *catalog.Store, store storage.Store, logger *log.Logger) *Mirror {
	return &Mirror{provider: p, catalog: cat, store: store, logger: logger}
}

// Cycle runs one mirror pass: link new items, pull remote flag sets,
// reconcile by recency, and push locally-newer flags in batches.
func (m *Mirror) Cycle(ctx context.Context) error {
	idMap, err := m.loadIDMap()
	if err != nil {
		return err
	}
	lastMirror, err := m.loadLastMirror()
	if err != nil {
		return err
	}

	// Identity linking: match unlinked local items to provider entries
	// by URL. The id map only ever grows.
	entries, err := m.provider.GetEntries(ctx, lastMirror, 0)
	if err != nil {
		return fmt.Errorf("pulling provider entries: %w", err)
	}
	entryByURL := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.URL != "" {
			entryByURL[entry.URL] = entry.ID
		}
	}
	linked := 0
	items := m.catalog.Items()
	for _, item := range items {
		if _, ok := idMap[item.ID]; ok || item.URL == "" {
			continue
		}
		if entryID, ok := entryByURL[item.URL]; ok {
			idMap[item.ID] = entryID
			linked++
		}
	}
	if linked > 0 {
		m.logger.Debug("linked items to provider entries", "count", linked)
	}

	unreadIDs, err := m.provider.GetUnreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("pulling unread set: %w", err)
	}
	starredIDs, err := m.provider.GetStarredIDs(ctx)
	if err != nil {
		return fmt.Errorf("pulling starred set: %w", err)
	}
	unread := toSet(unreadIDs)
	starred := toSet(starredIDs)

	// Reconcile per item: flags touched locally since the last mirror
	// pass push outward; everything else adopts the provider's state.
	var markRead, markUnread, star, unstar []string
	for _, item := range items {
		entryID, ok := idMap[item.ID]
		if !ok {
			continue
		}
		_, isUnread := unread[entryID]
		remoteRead := !isUnread
		_, remoteStarred := starred[entryID]

		if item.UpdatedAt.After(lastMirror) {
			if item.IsRead != remoteRead {
				if item.IsRead {
					markRead = append(markRead, entryID)
				} else {
					markUnread = append(markUnread, entryID)
				}
			}
			if item.IsStarred != remoteStarred {
				if item.IsStarred {
					star = append(star, entryID)
				} else {
					unstar = append(unstar, entryID)
				}
			}
			continue
		}
		if item.IsRead != remoteRead || item.IsStarred != remoteStarred {
			err := m.catalog.MutateItem(item.ID, func(it *models.Item) {
				it.IsRead = remoteRead
				it.IsStarred = remoteStarred
			})
			if err != nil {
				return fmt.Errorf("applying provider flags: %w", err)
			}
		}
	}

	if err := m.provider.MarkAsRead(ctx, markRead); err != nil {
		return fmt.Errorf("pushing read flags: %w", err)
	}
	if err := m.provider.MarkAsUnread(ctx, markUnread); err != nil {
		return fmt.Errorf("pushing unread flags: %w", err)
	}
	if err := m.provider.StarEntries(ctx, star); err != nil {
		return fmt.Errorf("pushing stars: %w", err)
	}
	if err := m.provider.UnstarEntries(ctx, unstar); err != nil {
		return fmt.Errorf("pushing unstars: %w", err)
	}

	if err := m.saveIDMap(idMap); err != nil {
		return err
	}
	return m.saveLastMirror(time.Now())
}

func (m *Mirror) loadIDMap() (map[string]string, error) {
	raw, err := m.store.GetState(storage.StateItemIDMap)
	if err != nil {
		return nil, fmt.Errorf("loading provider id map: %w", err)
	}
	idMap := make(map[string]string)
	if raw == nil {
		return idMap, nil
	}
	if err := json.Unmarshal(raw, &idMap); err != nil {
		return nil, fmt.Errorf("decoding provider id map: %w", err)
	}
	return idMap, nil
}

func (m *Mirror) saveIDMap(idMap map[string]string) error {
	raw, err := json.Marshal(idMap)
	if err != nil {
		return fmt.Errorf("encoding provider id map: %w", err)
	}
	return m.store.SetState(storage.StateItemIDMap, raw)
}

func (m *Mirror) loadLastMirror() (time.Time, error) {
	raw, err := m.store.GetState(stateLastMirror)
	if err != nil || raw == nil {
		return time.Time{}, err
	}
	var ts time.Time
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}, fmt.Errorf("decoding last mirror time: %w", err)
	}
	return ts, nil
}

func (m *Mirror) saveLastMirror(ts time.Time) error {
	raw, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("encoding last mirror time: %w", err)
	}
	return m.store.SetState(stateLastMirror, raw)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
