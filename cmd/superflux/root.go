// ABOUTME: Root Cobra command and global flags
// ABOUTME: Sets up CLI structure and opens config, storage, and the catalog

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/config"
	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/storage"
)

var (
	cfg   *config.Config
	store storage.Store
	cat   *catalog.Store
)

var rootCmd = &cobra.Command{
	Use:   "superflux",
	Short: "Feed aggregator with cross-device sync",
	Long: `
███████╗██╗   ██╗██████╗ ███████╗██████╗ ███████╗██╗     ██╗   ██╗██╗  ██╗
██╔════╝██║   ██║██╔══██╗██╔════╝██╔══██╗██╔════╝██║     ██║   ██║╚██╗██╔╝
███████╗██║   ██║██████╔╝█████╗  ██████╔╝█████╗  ██║     ██║   ██║ ╚███╔╝
╚════██║██║   ██║██╔═══╝ ██╔══╝  ██╔══██╗██╔══╝  ██║     ██║   ██║ ██╔██╗
███████║╚██████╔╝██║     ███████╗██║  ██║██║     ███████╗╚██████╔╝██╔╝ ██╗
╚══════╝ ╚═════╝ ╚═╝     ╚══════╝╚═╝  ╚═╝╚═╝     ╚══════╝ ╚═════╝ ╚═╝  ╚═╝

Follow articles, podcasts, social timelines, video channels, and forums
in one catalog, reconciled across devices and mirrored to your reader
service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		cat, err = catalog.Open(store)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close storage: %w", err)
			}
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// resolveFeed finds a feed by id prefix, endpoint URL, or exact name.
func resolveFeed(arg string) (*models.Feed, error) {
	if feed, ok := cat.FeedByURL(arg); ok {
		return feed, nil
	}
	var match *models.Feed
	for _, feed := range cat.Feeds() {
		if feed.Name == arg || strings.HasPrefix(feed.ID, arg) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous feed %q", arg)
			}
			match = feed
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no feed matches %q", arg)
	}
	return match, nil
}

// resolveItem finds an item by id prefix.
func resolveItem(arg string) (*models.Item, error) {
	var match *models.Item
	for _, item := range cat.Items() {
		if strings.HasPrefix(item.ID, arg) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous item id %q", arg)
			}
			match = item
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no item matches %q", arg)
	}
	return match, nil
}
