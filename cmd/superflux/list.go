// ABOUTME: List command for viewing items with filtering options
// ABOUTME: Shows read status, star, title, and published date; --feeds shows the subscription overview

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/timeutil"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List items",
	Long:    "List catalog items with optional filtering by feed, read status, and period.",
	RunE: func(cmd *cobra.Command, args []string) error {
		showFeeds, _ := cmd.Flags().GetBool("feeds")
		if showFeeds {
			return listFeeds()
		}

		all, _ := cmd.Flags().GetBool("all")
		starred, _ := cmd.Flags().GetBool("starred")
		feedFilter, _ := cmd.Flags().GetString("feed")
		period, _ := cmd.Flags().GetString("period")
		limit, _ := cmd.Flags().GetInt("limit")

		var items []*models.Item
		if feedFilter != "" {
			feed, err := resolveFeed(feedFilter)
			if err != nil {
				return err
			}
			items = cat.ItemsForFeed(feed.ID)
		} else {
			items = cat.Items()
		}

		cutoff, hasCutoff := timeutil.ParsePeriod(period)
		if period != "" && !hasCutoff {
			return fmt.Errorf("unknown period %q (try today, yesterday, week, month)", period)
		}

		faint := color.New(color.Faint).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		shown := 0
		for _, item := range items {
			if !all && item.IsRead {
				continue
			}
			if starred && !item.IsStarred {
				continue
			}
			if hasCutoff && (item.PublishedAt == nil || item.PublishedAt.Before(cutoff)) {
				continue
			}

			fmt.Print(faint(item.ID[:8]), " ")
			if item.IsRead {
				fmt.Print("✓ ")
			} else {
				fmt.Print("  ")
			}
			if item.IsStarred {
				fmt.Print(yellow("★ "))
			} else {
				fmt.Print("  ")
			}
			title := item.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Print(title)
			if item.FeedName != "" {
				fmt.Print(" ", faint("["+item.FeedName+"]"))
			}
			if item.PublishedAt != nil {
				fmt.Print(" ", faint(item.PublishedAt.Format("02 Jan 06 15:04")))
			}
			fmt.Println()

			shown++
			if shown >= limit {
				break
			}
		}
		if shown == 0 {
			fmt.Println("No items found")
		}
		return nil
	},
}

func listFeeds() error {
	feeds := cat.Feeds()
	if len(feeds) == 0 {
		fmt.Println("No feeds subscribed")
		return nil
	}
	counts := cat.UnreadCounts()
	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, feed := range feeds {
		name := feed.Name
		if name == "" {
			name = feed.EndpointURL
		}
		fmt.Print(faint(feed.ID[:8]), " ")
		fmt.Print(name)
		if feed.FolderPath != "" {
			fmt.Print(" ", cyan(feed.FolderPath))
		}
		fmt.Print(" ", faint(string(feed.SourceKind)))
		if unread := counts[feed.ID]; unread > 0 {
			fmt.Printf(" (%d unread)", unread)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("feeds", false, "list subscribed feeds instead of items")
	listCmd.Flags().BoolP("all", "a", false, "show read items too")
	listCmd.Flags().BoolP("starred", "s", false, "only starred items")
	listCmd.Flags().StringP("feed", "f", "", "filter by feed (id prefix, URL, or name)")
	listCmd.Flags().StringP("period", "p", "", "only items published since: today, yesterday, week, month")
	listCmd.Flags().IntP("limit", "n", 20, "max items to show")
}
