// ABOUTME: Forum adapter for reddit-style listing JSON
// ABOUTME: Rewrites URLs to the fetch-tolerant old.* mirror host before fetching

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/harper/superflux/internal/content"
	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/models"
)

// ForumAdapter ingests forum listings (subreddits and similar). The
// modern web host throttles non-browser clients aggressively; the old.*
// mirror serves the same listing JSON with far fewer refusals.
type ForumAdapter struct {
	client *fetch.Client
}

type forumListing struct {
	Data struct {
		Children []struct {
			Data forumPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type forumPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	URL        string  `json:"url"`
	SelfText   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  string  `json:"subreddit"`
}

// Fetch retrieves the listing and returns posts not already known.
func (a *ForumAdapter) Fetch(ctx context.Context, feed *models.Feed, known *models.KeySet) ([]*models.Item, error) {
	listingURL, err := RewriteForumURL(feed.EndpointURL)
	if err != nil {
		return nil, err
	}

	body, err := a.client.Get(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", listingURL, ErrEmptyPayload)
	}

	var listing forumListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", listingURL, err, ErrBadFormat)
	}

	items := make([]*models.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if feed.Name == "" && post.Subreddit != "" {
			feed.Name = "r/" + post.Subreddit
			feed.Touch()
		}

		item := models.NewItem(feed.ID, strings.TrimSpace(post.Title))
		item.SourceKind = models.SourceForum
		item.FeedName = feed.Name
		item.Author = post.Author
		if post.Permalink != "" {
			item.URL = "https://www.reddit.com" + post.Permalink
		} else {
			item.URL = post.URL
		}
		if post.CreatedUTC > 0 {
			published := time.Unix(int64(post.CreatedUTC), 0)
			item.PublishedAt = &published
		}
		item.Content = content.Sanitize(post.SelfText)
		item.Excerpt = content.Excerpt(item.Content, excerptLength)

		if known != nil && known.Contains(item) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// RewriteForumURL points a forum URL at the old.* mirror host and makes
// sure it requests the JSON listing.
func RewriteForumURL(forumURL string) (string, error) {
	parsed, err := url.Parse(forumURL)
	if err != nil {
		return "", fmt.Errorf("invalid forum URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "reddit.com" || host == "www.reddit.com" {
		parsed.Host = "old.reddit.com"
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	parsed.Path = path

	return parsed.String(), nil
}
