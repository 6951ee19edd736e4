// ABOUTME: Tests for the storage state contract and body bounding
// ABOUTME: Covers missing-key normalization shared by the kv and memory backends

package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/harper/superflux/internal/models"
)

func TestStateValueMissingKey(t *testing.T) {
	data, err := stateValue(nil, badger.ErrKeyNotFound)
	if data != nil || err != nil {
		t.Errorf("stateValue(missing) = %v, %v, want nil, nil", data, err)
	}

	// Wrapped not-found errors normalize the same way.
	wrapped := fmt.Errorf("read state: %w", badger.ErrKeyNotFound)
	data, err = stateValue(nil, wrapped)
	if data != nil || err != nil {
		t.Errorf("stateValue(wrapped missing) = %v, %v, want nil, nil", data, err)
	}
}

func TestStateValueOtherErrorPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	if _, err := stateValue(nil, boom); !errors.Is(err, boom) {
		t.Errorf("stateValue error = %v, want %v", err, boom)
	}
}

func TestStateValueCopiesData(t *testing.T) {
	raw := []byte(`["id-1"]`)
	data, err := stateValue(raw, nil)
	if err != nil {
		t.Fatalf("stateValue: %v", err)
	}
	raw[0] = 'X'
	if string(data) != `["id-1"]` {
		t.Errorf("stateValue aliased the input buffer: %q", data)
	}

	data, err = stateValue([]byte{}, nil)
	if data != nil || err != nil {
		t.Errorf("stateValue(empty) = %v, %v, want nil, nil", data, err)
	}
}

func TestMemoryGetStateMissingKey(t *testing.T) {
	mem := NewMemory()
	data, err := mem.GetState("never-written")
	if data != nil || err != nil {
		t.Errorf("GetState(missing) = %v, %v, want nil, nil", data, err)
	}
}

func TestBoundItemStripsBodies(t *testing.T) {
	item := models.NewItem("feed-1", "Long read")
	item.FullContent = strings.Repeat("x", 1000)
	item.Content = strings.Repeat("y", maxPersistedContent+100)

	bounded := boundItem(item)
	if bounded.FullContent != "" {
		t.Error("FullContent should be stripped before persist")
	}
	if len(bounded.Content) != maxPersistedContent {
		t.Errorf("Content length = %d, want %d", len(bounded.Content), maxPersistedContent)
	}
	if item.FullContent == "" {
		t.Error("boundItem must not mutate the original item")
	}
}
