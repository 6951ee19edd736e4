// ABOUTME: Postgres client for the remote feeds and feed_items tables
// ABOUTME: Upserts on (id, user_id); item pushes are chunked to respect payload limits

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/harper/superflux/internal/models"
)

// BatchSize bounds the number of items written per push statement.
const BatchSize = 50

// Client reads and writes one user's rows in the remote backend.
type Client struct {
	db     *sql.DB
	userID string
}

// Open connects to the backend for the given user.
func Open(dsn, userID string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening backend connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)
	return &Client{db: db, userID: userID}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection is usable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging backend: %w", err)
	}
	return nil
}

// PullFeeds returns all of the user's remote feeds.
func (c *Client) PullFeeds(ctx context.Context) ([]*models.Feed, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, source, icon, url, color, folder, updated_at
		FROM feeds WHERE user_id = $1`, c.userID)
	if err != nil {
		return nil, fmt.Errorf("pulling feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*models.Feed
	for rows.Next() {
		var feed models.Feed
		var kind string
		if err := rows.Scan(&feed.ID, &feed.Name, &kind, &feed.Icon,
			&feed.EndpointURL, &feed.Color, &feed.FolderPath, &feed.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning feed row: %w", err)
		}
		feed.SourceKind = models.SourceKind(kind)
		feed.CreatedAt = feed.UpdatedAt
		feeds = append(feeds, &feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading feed rows: %w", err)
	}
	return feeds, nil
}

// PullItems returns all of the user's remote items. Remote rows never
// carry full bodies; Content stays empty on pull.
func (c *Client) PullItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, feed_id, title, excerpt, author, published_at, url,
		       is_read, is_starred, is_bookmarked, source, feed_name, updated_at
		FROM feed_items WHERE user_id = $1`, c.userID)
	if err != nil {
		return nil, fmt.Errorf("pulling items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var item models.Item
		var kind string
		var published sql.NullTime
		if err := rows.Scan(&item.ID, &item.FeedID, &item.Title, &item.Excerpt,
			&item.Author, &published, &item.URL, &item.IsRead, &item.IsStarred,
			&item.IsBookmarked, &kind, &item.FeedName, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		item.SourceKind = models.SourceKind(kind)
		if published.Valid {
			ts := published.Time
			item.PublishedAt = &ts
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading item rows: %w", err)
	}
	return items, nil
}

// UpsertFeeds writes feeds remotely, inserting or updating on (id, user_id).
func (c *Client) UpsertFeeds(ctx context.Context, feeds []*models.Feed) error {
	if len(feeds) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting feed push: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feeds (id, user_id, name, source, icon, url, color, folder, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id, user_id) DO UPDATE SET
			name = EXCLUDED.name, source = EXCLUDED.source, icon = EXCLUDED.icon,
			url = EXCLUDED.url, color = EXCLUDED.color, folder = EXCLUDED.folder,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing feed upsert: %w", err)
	}
	defer stmt.Close()

	for _, feed := range feeds {
		if _, err := stmt.ExecContext(ctx, feed.ID, c.userID, feed.Name,
			string(feed.SourceKind), feed.Icon, feed.EndpointURL, feed.Color,
			feed.FolderPath, feed.UpdatedAt); err != nil {
			return fmt.Errorf("upserting feed %s: %w", feed.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing feed push: %w", err)
	}
	return nil
}

// UpsertItems writes items remotely in chunks of BatchSize, each chunk
// in its own transaction so a failure loses at most one chunk.
func (c *Client) UpsertItems(ctx context.Context, items []*models.Item) error {
	for _, bounds := range chunkBounds(len(items), BatchSize) {
		if err := c.upsertItemChunk(ctx, items[bounds[0]:bounds[1]]); err != nil {
			return err
		}
	}
	return nil
}

// chunkBounds splits [0, total) into [start, end) windows of at most
// size elements.
func chunkBounds(total, size int) [][2]int {
	var bounds [][2]int
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

func (c *Client) upsertItemChunk(ctx context.Context, items []*models.Item) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting item push: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feed_items (id, user_id, feed_id, title, excerpt, author,
			published_at, url, is_read, is_starred, is_bookmarked, source,
			feed_name, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id, user_id) DO UPDATE SET
			feed_id = EXCLUDED.feed_id, title = EXCLUDED.title,
			excerpt = EXCLUDED.excerpt, author = EXCLUDED.author,
			published_at = EXCLUDED.published_at, url = EXCLUDED.url,
			is_read = EXCLUDED.is_read, is_starred = EXCLUDED.is_starred,
			is_bookmarked = EXCLUDED.is_bookmarked, source = EXCLUDED.source,
			feed_name = EXCLUDED.feed_name, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing item upsert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		var published sql.NullTime
		if item.PublishedAt != nil {
			published = sql.NullTime{Time: *item.PublishedAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, item.ID, c.userID, item.FeedID,
			item.Title, item.Excerpt, item.Author, published, item.URL,
			item.IsRead, item.IsStarred, item.IsBookmarked,
			string(item.SourceKind), item.FeedName, pq.Array([]string{}),
			item.UpdatedAt); err != nil {
			return fmt.Errorf("upserting item %s: %w", item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item push: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed row and its items remotely.
func (c *Client) DeleteFeed(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM feed_items WHERE user_id = $1 AND feed_id = $2`, c.userID, id); err != nil {
		return fmt.Errorf("deleting remote items of feed %s: %w", id, err)
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE user_id = $1 AND id = $2`, c.userID, id); err != nil {
		return fmt.Errorf("deleting remote feed %s: %w", id, err)
	}
	return nil
}

// DeleteItems removes item rows remotely.
func (c *Client) DeleteItems(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM feed_items WHERE user_id = $1 AND id = ANY($2)`,
		c.userID, pq.Array(ids)); err != nil {
		return fmt.Errorf("deleting remote items: %w", err)
	}
	return nil
}
