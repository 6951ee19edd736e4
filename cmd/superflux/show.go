// ABOUTME: Show command for viewing item content
// ABOUTME: Renders the item body as markdown in the terminal and marks it read

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/content"
	"github.com/harper/superflux/internal/models"
)

var showCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show an item",
	Long:  "Display the full content of an item and mark it as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noMark, _ := cmd.Flags().GetBool("no-mark")

		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Println(strings.Repeat("─", 60))

		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Printf("%s\n\n", bold(title))

		if item.FeedName != "" {
			fmt.Printf("%s %s\n", faint("Feed:"), item.FeedName)
		}
		if item.Author != "" {
			fmt.Printf("%s %s\n", faint("Author:"), item.Author)
		}
		if item.PublishedAt != nil {
			fmt.Printf("%s %s\n", faint("Published:"), item.PublishedAt.Format("Mon, 02 Jan 2006 15:04 MST"))
		}
		if item.URL != "" {
			fmt.Printf("%s %s\n", faint("Link:"), cyan(item.URL))
		}

		body := item.FullContent
		if body == "" {
			body = item.Content
		}
		if body == "" {
			body = item.Excerpt
		}
		if body != "" {
			if minutes := content.ReadTime(body); minutes > 0 {
				fmt.Printf("%s %d min\n", faint("Read time:"), minutes)
			}
		}

		fmt.Println(strings.Repeat("─", 60))

		if body != "" {
			markdown := content.ToMarkdown(body)
			rendered, err := glamour.Render(markdown, "dark")
			if err != nil {
				fmt.Printf("%s\n", faint("(markdown rendering unavailable, showing plain text)"))
				fmt.Printf("\n%s\n", markdown)
			} else {
				fmt.Print(rendered)
			}
		} else {
			fmt.Println("\n(No content available)")
		}

		fmt.Println()

		if !noMark && !item.IsRead {
			if err := cat.MutateItem(item.ID, func(it *models.Item) {
				it.IsRead = true
			}); err != nil {
				return fmt.Errorf("failed to mark item as read: %w", err)
			}
			pushFlagChanges(cmd, []string{item.ID})
			fmt.Printf("%s\n", faint("Marked as read"))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("no-mark", false, "don't mark the item as read")
}
