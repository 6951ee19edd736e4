// ABOUTME: Tests for config load/save round-tripping and provider credential handling

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harper/superflux/internal/config"
	"github.com/harper/superflux/internal/provider"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HasBackend() {
		t.Error("empty config reports a backend")
	}
	if _, ok, err := cfg.ProviderConfig(); ok || err != nil {
		t.Errorf("ProviderConfig() = ok=%v err=%v, want none", ok, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := &config.Config{
		BackendDSN:    "postgres://localhost/superflux?sslmode=disable",
		BackendUserID: "user-1",
	}
	if err := cfg.SetProviderConfig(provider.MinifluxConfig{BaseURL: "https://rss.example.com", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.HasBackend() || loaded.BackendUserID != "user-1" {
		t.Errorf("backend config lost: %+v", loaded)
	}
	pc, ok, err := loaded.ProviderConfig()
	if err != nil || !ok {
		t.Fatalf("ProviderConfig() = ok=%v err=%v", ok, err)
	}
	if pc.Kind() != provider.KindMiniflux {
		t.Errorf("provider kind = %q, want miniflux", pc.Kind())
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := config.ExpandPath("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("ExpandPath(~/data) = %q", got)
	}
	if got := config.ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q", got)
	}
}
