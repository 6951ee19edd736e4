// ABOUTME: Fetch command for refreshing feed content
// ABOUTME: Runs the ingestion adapter for one feed or all feeds sequentially

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/models"
)

var fetchCmd = &cobra.Command{
	Use:     "fetch [feed]",
	Aliases: []string{"refresh"},
	Short:   "Fetch new items",
	Long:    "Fetch new items for a single feed, or all subscribed feeds when no argument is given",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var feeds []*models.Feed
		if len(args) == 1 {
			feed, err := resolveFeed(args[0])
			if err != nil {
				return err
			}
			feeds = []*models.Feed{feed}
		} else {
			feeds = cat.Feeds()
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds subscribed")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		total := 0
		failed := 0
		for _, feed := range feeds {
			name := feed.Name
			if name == "" {
				name = feed.EndpointURL
			}
			added, err := ingestOnce(cmd, feed)
			if err != nil {
				failed++
				fmt.Printf("%s %s: %v\n", red("✗"), name, err)
				continue
			}
			total += added
			if added > 0 {
				fmt.Printf("%s %s: %d new\n", green("✓"), name, added)
			} else {
				fmt.Printf("%s %s: up to date\n", faint("·"), name)
			}
		}

		fmt.Printf("\n%d new item(s) across %d feed(s)", total, len(feeds))
		if failed > 0 {
			fmt.Printf(", %s", red(fmt.Sprintf("%d failed", failed)))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
