// ABOUTME: Import command for OPML files and plain URL lists
// ABOUTME: Reports added and skipped counts; duplicates by URL are skipped

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/models"
	"github.com/harper/superflux/internal/opml"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import subscriptions",
	Long: `Import subscriptions from an OPML file or a plain text file with one
feed URL per line. Feeds whose URL is already subscribed are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		feeds, err := readImportFile(path)
		if err != nil {
			return err
		}
		if len(feeds) == 0 {
			return fmt.Errorf("no feeds found in %s", path)
		}

		added, skipped, err := cat.ImportFeeds(feeds)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d feeds (%d duplicates skipped)\n", green("Imported"), added, skipped)
		return nil
	},
}

func readImportFile(path string) ([]*models.Feed, error) {
	if strings.HasSuffix(strings.ToLower(path), ".opml") ||
		strings.HasSuffix(strings.ToLower(path), ".xml") {
		doc, err := opml.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse OPML: %w", err)
		}
		var feeds []*models.Feed
		for _, entry := range doc.AllFeeds() {
			feed := models.NewFeed(entry.URL, models.SourceArticle)
			feed.Name = entry.Title
			feed.FolderPath = entry.Folder
			feeds = append(feeds, feed)
		}
		return feeds, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var feeds []*models.Feed
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		feeds = append(feeds, models.NewFeed(line, models.SourceArticle))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return feeds, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
