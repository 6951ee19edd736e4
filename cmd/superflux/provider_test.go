// ABOUTME: Tests for the provider command
// ABOUTME: Verifies configured credentials survive a reload

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harper/superflux/internal/config"
	"github.com/harper/superflux/internal/provider"
)

func TestProviderSetPersistsAcrossReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	oldCfg := cfg
	t.Cleanup(func() { cfg = oldCfg })
	var err error
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	providerSetCmd.SetContext(context.Background())
	if err := providerSetCmd.Flags().Set("url", srv.URL); err != nil {
		t.Fatal(err)
	}
	if err := providerSetCmd.Flags().Set("token", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := providerSetCmd.RunE(providerSetCmd, []string{"miniflux"}); err != nil {
		t.Fatalf("provider set: %v", err)
	}

	// A later invocation loads the config fresh; the credentials must
	// still be there.
	reloaded, err := config.Load()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	pcfg, ok, err := reloaded.ProviderConfig()
	if err != nil {
		t.Fatalf("ProviderConfig: %v", err)
	}
	if !ok {
		t.Fatal("provider config was not persisted")
	}
	if pcfg.Kind() != provider.KindMiniflux {
		t.Errorf("reloaded provider kind = %q, want %q", pcfg.Kind(), provider.KindMiniflux)
	}
	mcfg, isMiniflux := pcfg.(provider.MinifluxConfig)
	if !isMiniflux || mcfg.Token != "secret" {
		t.Errorf("reloaded provider config = %+v, want the saved token", pcfg)
	}
}
