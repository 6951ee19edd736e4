// ABOUTME: Pure merge functions combining local and remote feed/item collections
// ABOUTME: Newer updated_at wins, ties favor local, and feed ids remap through the match table

package sync

import (
	"sort"

	"github.com/harper/superflux/internal/models"
)

// feedMergeResult carries the merged feed collection, the remap table
// from remote feed ids to the local ids that won identity, and the
// local-only feeds that still need a remote insert.
type feedMergeResult struct {
	merged    []*models.Feed
	remap     map[string]string
	localOnly []*models.Feed
}

// mergeFeeds folds remote feeds into the local set. Identity is by id
// first, then by endpoint URL; when two records match by URL under
// different ids, the lexically lower id keeps the record identity and
// the other id is remapped to it.
func mergeFeeds(local, remote []*models.Feed) feedMergeResult {
	byID := make(map[string]*models.Feed, len(local))
	byURL := make(map[string]*models.Feed, len(local))
	for _, feed := range local {
		cp := feed.Clone()
		byID[cp.ID] = cp
		byURL[cp.EndpointURL] = cp
	}

	result := feedMergeResult{remap: make(map[string]string)}
	matched := make(map[string]bool, len(local))

	for _, rf := range remote {
		lf, ok := byID[rf.ID]
		if !ok {
			lf, ok = byURL[rf.EndpointURL]
		}
		if !ok {
			// No local counterpart: adopt the remote record verbatim.
			adopted := rf.Clone()
			result.merged = append(result.merged, adopted)
			matched[adopted.ID] = true
			continue
		}
		merged := mergeFeedPair(lf, rf)
		merged.ID = lowerID(lf.ID, rf.ID)
		if rf.ID != merged.ID {
			result.remap[rf.ID] = merged.ID
		}
		if lf.ID != merged.ID {
			result.remap[lf.ID] = merged.ID
		}
		// Two remote rows can share a URL for a cycle after a collapsed
		// feed is inserted under its winning id; emit the record once.
		if matched[lf.ID] {
			continue
		}
		matched[lf.ID] = true
		result.merged = append(result.merged, merged)
	}

	for _, feed := range local {
		if matched[feed.ID] {
			continue
		}
		cp := feed.Clone()
		result.merged = append(result.merged, cp)
		result.localOnly = append(result.localOnly, cp)
	}
	return result
}

// mergeFeedPair keeps the fields of whichever side is newer; ties
// favor local, since local records carry display fields the remote
// does not track.
func mergeFeedPair(local, remote *models.Feed) *models.Feed {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		merged := remote.Clone()
		merged.ID = local.ID
		// Display fields the remote never carries stay local.
		if merged.Icon == "" {
			merged.Icon = local.Icon
		}
		if merged.Color == "" {
			merged.Color = local.Color
		}
		merged.CreatedAt = local.CreatedAt
		return merged
	}
	return local.Clone()
}

func lowerID(a, b string) string {
	if b < a {
		return b
	}
	return a
}

// itemMergeResult carries the merged item collection and the
// local-only items that still need a remote insert.
type itemMergeResult struct {
	merged    []*models.Item
	localOnly []*models.Item
}

// mergeItems folds remote items into the local set. Identity is by id
// first, then by non-empty URL. Feed references on both sides are
// rewritten through the remap table before matching so no item ends up
// pointing at a feed id the merge collapsed away. Local content fields
// always survive; status flags come from whichever side is newer.
func mergeItems(local, remote []*models.Item, remap map[string]string) itemMergeResult {
	byID := make(map[string]*models.Item, len(local))
	byURL := make(map[string]*models.Item, len(local))
	locals := make([]*models.Item, 0, len(local))
	for _, item := range local {
		cp := item.Clone()
		if mapped, ok := remap[cp.FeedID]; ok {
			cp.FeedID = mapped
		}
		locals = append(locals, cp)
		byID[cp.ID] = cp
		if cp.URL != "" {
			byURL[cp.URL] = cp
		}
	}

	var result itemMergeResult
	matched := make(map[string]bool, len(local))

	for _, ri := range remote {
		ri = ri.Clone()
		if mapped, ok := remap[ri.FeedID]; ok {
			ri.FeedID = mapped
		}
		li, ok := byID[ri.ID]
		if !ok && ri.URL != "" {
			li, ok = byURL[ri.URL]
		}
		if !ok {
			result.merged = append(result.merged, ri)
			matched[ri.ID] = true
			continue
		}
		result.merged = append(result.merged, mergeItemPair(li, ri))
		matched[li.ID] = true
	}

	for _, item := range locals {
		if matched[item.ID] {
			continue
		}
		result.merged = append(result.merged, item)
		result.localOnly = append(result.localOnly, item)
	}

	// Deterministic order keeps commits and tests stable.
	sort.Slice(result.merged, func(i, j int) bool {
		return result.merged[i].ID < result.merged[j].ID
	})
	return result
}

// mergeItemPair keeps the local record's body and identity; status
// flags follow the strictly newer side, so a tie keeps local state.
func mergeItemPair(local, remote *models.Item) *models.Item {
	merged := local.Clone()
	if remote.UpdatedAt.After(local.UpdatedAt) {
		merged.IsRead = remote.IsRead
		merged.IsStarred = remote.IsStarred
		merged.IsBookmarked = remote.IsBookmarked
		merged.UpdatedAt = remote.UpdatedAt
	}
	return merged
}
