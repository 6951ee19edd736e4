// ABOUTME: Feed management commands for adding, removing, renaming, and moving feeds
// ABOUTME: New feeds get an initial fetch so the catalog fills immediately

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/ingest"
	"github.com/harper/superflux/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a feed",
	Long: `Subscribe to a content source. The kind controls how the URL is
ingested: article (RSS/Atom, the default), podcast, social (a Mastodon
profile URL), video (a YouTube channel URL), or forum (a subreddit URL).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		kindFlag, _ := cmd.Flags().GetString("kind")
		name, _ := cmd.Flags().GetString("name")
		folder, _ := cmd.Flags().GetString("folder")
		skipFetch, _ := cmd.Flags().GetBool("no-fetch")

		kind := models.SourceKind(kindFlag)
		switch kind {
		case models.SourceArticle, models.SourcePodcast, models.SourceSocial,
			models.SourceVideo, models.SourceForum:
		default:
			return fmt.Errorf("unknown source kind %q", kindFlag)
		}

		feed := models.NewFeed(url, kind)
		feed.Name = name
		feed.FolderPath = folder
		if err := cat.AddFeed(feed); err != nil {
			return fmt.Errorf("failed to add feed: %w", err)
		}
		if folder != "" {
			if err := cat.CreateFolder(folder); err != nil {
				return err
			}
		}

		if !skipFetch {
			if accepted, err := ingestOnce(cmd, feed); err != nil {
				color.Yellow("Added, but the first fetch failed: %v", err)
			} else {
				fmt.Printf("Fetched %d items\n", accepted)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s\n", green("Added"), url)
		fmt.Printf("Feed ID: %s\n", feed.ID)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <feed>",
	Aliases: []string{"rm"},
	Short:   "Unsubscribe from a feed",
	Long:    "Remove a feed and all of its items from the catalog.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := cat.RemoveFeed(feed.ID); err != nil {
			return fmt.Errorf("failed to remove feed: %w", err)
		}
		fmt.Printf("Removed %s\n", feed.EndpointURL)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <feed> <name>",
	Short: "Rename a feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := cat.RenameFeed(feed.ID, args[1]); err != nil {
			return fmt.Errorf("failed to rename feed: %w", err)
		}
		fmt.Printf("Renamed to %q\n", args[1])
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <feed> <folder>",
	Short: "Move a feed into a folder",
	Long:  "Move a feed into a folder. Use '' as the folder to move it to the root.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := cat.MoveFeedToFolder(feed.ID, args[1]); err != nil {
			return fmt.Errorf("failed to move feed: %w", err)
		}
		if args[1] == "" {
			fmt.Println("Moved to root")
		} else {
			fmt.Printf("Moved to %q\n", args[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(moveCmd)

	addCmd.Flags().StringP("kind", "k", string(models.SourceArticle), "source kind: article, podcast, social, video, forum")
	addCmd.Flags().StringP("name", "n", "", "display name (defaults to the upstream title)")
	addCmd.Flags().StringP("folder", "f", "", "folder path to file the feed under")
	addCmd.Flags().Bool("no-fetch", false, "skip the initial fetch")
}

// ingestOnce fetches one feed through its adapter and merges the new
// items, returning how many were accepted.
func ingestOnce(cmd *cobra.Command, feed *models.Feed) (int, error) {
	client := fetch.NewClient()
	adapter := ingest.ForKind(feed.SourceKind, client)

	known := models.NewKeySet()
	for _, item := range cat.ItemsForFeed(feed.ID) {
		known.Add(item)
	}
	items, err := adapter.Fetch(cmd.Context(), feed, known)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		item.FeedName = feed.Name
	}
	accepted, err := cat.MergeIncomingItems(items)
	if err != nil {
		return 0, err
	}
	// The adapter may have filled in the upstream title or reclassified
	// the feed (article -> podcast); persist those changes.
	if err := cat.UpdateFeed(feed.ID, func(f *models.Feed) {
		f.Name = feed.Name
		f.SourceKind = feed.SourceKind
	}); err != nil {
		return len(accepted), err
	}
	return len(accepted), nil
}
