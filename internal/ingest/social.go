// ABOUTME: Social-timeline adapter for Mastodon-compatible JSON APIs
// ABOUTME: Resolves account handles and fetches statuses with bounded 429 retry

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

// socialRetryAttempts bounds retries against rate-limiting timelines.
const socialRetryAttempts = 3

// SocialAdapter ingests a public account timeline from a
// Mastodon-compatible instance. The feed's endpoint is the profile URL
// (https://instance/@handle).
type SocialAdapter struct {
	client *fetch.Client
}

type socialAccount struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
}

type socialStatus struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	URL         string        `json:"url"`
	Content     string        `json:"content"`
	SpoilerText string        `json:"spoiler_text"`
	Account     socialAccount `json:"account"`
}

// Fetch resolves the account behind the profile URL and returns its
// recent statuses as catalog items. Rate-limiting responses are retried
// with exponential backoff before surfacing as a rate-limit error.
func (a *SocialAdapter) Fetch(ctx context.Context, feed *models.Feed, known *models.KeySet) ([]*models.Item, error) {
	base, handle, err := splitProfileURL(feed.EndpointURL)
	if err != nil {
		return nil, err
	}

	account, err := a.lookupAccount(ctx, base, handle)
	if err != nil {
		return nil, err
	}

	if feed.Name == "" {
		name := account.DisplayName
		if name == "" {
			name = "@" + account.Acct
		}
		feed.Name = name
		feed.Touch()
	}

	statusURL := fmt.Sprintf("%s/api/v1/accounts/%s/statuses?limit=40&exclude_replies=true", base, url.PathEscape(account.ID))
	body, err := a.client.GetRetry(ctx, statusURL, socialRetryAttempts)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", statusURL, ErrEmptyPayload)
	}

	var statuses []socialStatus
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", statusURL, err, ErrBadFormat)
	}

	items := make([]*models.Item, 0, len(statuses))
	for _, status := range statuses {
		item := models.NewItem(feed.ID, statusTitle(status))
		item.URL = status.URL
		item.SourceKind = models.SourceSocial
		item.FeedName = feed.Name
		item.Author = status.Account.DisplayName
		if item.Author == "" {
			item.Author = "@" + status.Account.Acct
		}
		published := status.CreatedAt
		item.PublishedAt = &published
		item.Content = content.Sanitize(status.Content)
		item.Excerpt = content.Excerpt(item.Content, excerptLength)

		if known != nil && known.Contains(item) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// lookupAccount resolves a handle to the instance-local account id.
func (a *SocialAdapter) lookupAccount(ctx context.Context, base, handle string) (*socialAccount, error) {
	lookupURL := fmt.Sprintf("%s/api/v1/accounts/lookup?acct=%s", base, url.QueryEscape(handle))
	body, err := a.client.GetRetry(ctx, lookupURL, socialRetryAttempts)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", lookupURL, ErrEmptyPayload)
	}

	var account socialAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", lookupURL, err, ErrBadFormat)
	}
	if account.ID == "" {
		return nil, fmt.Errorf("%s: no account id in response: %w", lookupURL, ErrBadFormat)
	}
	return &account, nil
}

// splitProfileURL extracts the instance base URL and the account handle
// from a profile URL like https://instance.example/@user.
func splitProfileURL(profileURL string) (base, handle string, err error) {
	parsed, err := url.Parse(profileURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid profile URL: %w", err)
	}

	for _, segment := range strings.Split(parsed.Path, "/") {
		if strings.HasPrefix(segment, "@") && len(segment) > 1 {
			handle = strings.TrimPrefix(segment, "@")
			break
		}
	}
	if handle == "" {
		return "", "", fmt.Errorf("no @handle in profile URL %q", profileURL)
	}

	return parsed.Scheme + "://" + parsed.Host, handle, nil
}

// statusTitle derives a short title for a status: the content warning
// when present, otherwise the leading words of the post body.
func statusTitle(status socialStatus) string {
	if status.SpoilerText != "" {
		return status.SpoilerText
	}
	title := content.Excerpt(status.Content, 80)
	if title == "" {
		title = status.ID
	}
	return title
}
