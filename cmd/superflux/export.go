// ABOUTME: Export command writing the catalog's subscriptions as OPML
// ABOUTME: Folder paths become nested outline elements

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/opml"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export subscriptions as OPML",
	Long:  "Write all subscribed feeds as OPML. With no argument the document goes to stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := opml.NewDocument("superflux subscriptions")
		for _, feed := range cat.Feeds() {
			title := feed.Name
			if title == "" {
				title = feed.EndpointURL
			}
			if err := doc.AddFeed(feed.EndpointURL, title, feed.FolderPath); err != nil {
				return fmt.Errorf("failed to build OPML: %w", err)
			}
		}

		if len(args) == 0 {
			return doc.Write(os.Stdout)
		}
		if err := doc.WriteFile(args[0]); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
		fmt.Printf("Exported %d feeds to %s\n", len(cat.Feeds()), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
