// ABOUTME: Video-channel adapter that resolves channel handles to stable channel ids
// ABOUTME: Scrapes the profile page for the id, then ingests the channel's syndication XML

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/harper/superflux/internal/fetch"
	"github.com/harper/superflux/internal/models"
)

// VideoAdapter ingests video channels. Channel pages are addressed by
// handle (https://host/@handle), which is unstable for feed purposes;
// the adapter resolves it to the channel id once per fetch and reads
// the channel's XML feed.
type VideoAdapter struct {
	client *fetch.Client
}

var channelIDPattern = regexp.MustCompile(`"channelId"\s*:\s*"(UC[\w-]+)"`)

// Fetch resolves the channel and returns new items from its feed.
func (a *VideoAdapter) Fetch(ctx context.Context, feed *models.Feed, known *models.KeySet) ([]*models.Item, error) {
	feedURL, err := a.resolveFeedURL(ctx, feed.EndpointURL)
	if err != nil {
		return nil, err
	}

	body, err := a.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return parseSyndication(body, feed, known)
}

// resolveFeedURL rewrites a channel URL into the stable XML feed URL.
// /channel/<id> URLs resolve without a network round trip; handle URLs
// need the profile page scraped for the id.
func (a *VideoAdapter) resolveFeedURL(ctx context.Context, channelURL string) (string, error) {
	parsed, err := url.Parse(channelURL)
	if err != nil {
		return "", fmt.Errorf("invalid channel URL: %w", err)
	}
	base := parsed.Scheme + "://" + parsed.Host

	if id := channelIDFromPath(parsed.Path); id != "" {
		return channelFeedURL(base, id), nil
	}

	page, err := a.client.Get(ctx, channelURL)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(page)) == 0 {
		return "", fmt.Errorf("%s: %w", channelURL, ErrEmptyPayload)
	}

	id := channelIDFromPage(page)
	if id == "" {
		return "", fmt.Errorf("%s: no channel id on profile page: %w", channelURL, ErrBadFormat)
	}
	return channelFeedURL(base, id), nil
}

func channelFeedURL(base, channelID string) string {
	return fmt.Sprintf("%s/feeds/videos.xml?channel_id=%s", base, url.QueryEscape(channelID))
}

// channelIDFromPath extracts the id from /channel/<id> URLs.
func channelIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if segment == "channel" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// channelIDFromPage scans a profile page for the channel id, first via
// the canonical link element, then via the embedded player config.
func channelIDFromPage(page []byte) string {
	if doc, err := html.Parse(bytes.NewReader(page)); err == nil {
		if id := canonicalChannelID(doc); id != "" {
			return id
		}
	}

	if match := channelIDPattern.FindSubmatch(page); match != nil {
		return string(match[1])
	}
	return ""
}

func canonicalChannelID(node *html.Node) string {
	if node.Type == html.ElementNode && node.Data == "link" {
		var rel, href string
		for _, attr := range node.Attr {
			switch attr.Key {
			case "rel":
				rel = attr.Val
			case "href":
				href = attr.Val
			}
		}
		if rel == "canonical" {
			if parsed, err := url.Parse(href); err == nil {
				if id := channelIDFromPath(parsed.Path); id != "" {
					return id
				}
			}
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if id := canonicalChannelID(child); id != "" {
			return id
		}
	}
	return ""
}
