// ABOUTME: MCP tool definitions and handlers over the catalog
// ABOUTME: Feed and item listing, item retrieval, and read/star toggles

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/superflux/internal/content"
	"github.com/harper/superflux/internal/models"
)

type FeedOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	SourceKind  string `json:"source_kind"`
	Folder      string `json:"folder,omitempty"`
	UnreadCount int    `json:"unread_count"`
}

type ListFeedsOutput struct {
	Feeds   []FeedOutput `json:"feeds"`
	Count   int          `json:"count"`
	Folders []string     `json:"folders"`
}

type ListItemsInput struct {
	FeedID     *string `json:"feed_id,omitempty"`
	UnreadOnly *bool   `json:"unread_only,omitempty"`
	Limit      *int    `json:"limit,omitempty"`
}

type ItemOutput struct {
	ID          string     `json:"id"`
	FeedID      string     `json:"feed_id"`
	FeedName    string     `json:"feed_name,omitempty"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Author      string     `json:"author,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IsRead      bool       `json:"is_read"`
	IsStarred   bool       `json:"is_starred"`
}

type ListItemsOutput struct {
	Items []ItemOutput `json:"items"`
	Count int          `json:"count"`
}

type GetItemInput struct {
	ItemID string `json:"item_id"`
}

type GetItemOutput struct {
	ItemOutput
	Content     string `json:"content,omitempty"`
	ReadMinutes int    `json:"read_minutes"`
}

type SetStatusInput struct {
	ItemID string `json:"item_id"`
}

type StatusOutput struct {
	Success bool   `json:"success"`
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

func (s *Server) registerTools() {
	s.registerListFeedsTool()
	s.registerListItemsTool()
	s.registerGetItemTool()
	s.registerStatusTool("mark_read", "Mark an item as read.", func(item *models.Item) { item.IsRead = true })
	s.registerStatusTool("mark_unread", "Mark an item as unread.", func(item *models.Item) { item.IsRead = false })
	s.registerStatusTool("star_item", "Star an item to keep it easy to find later.", func(item *models.Item) { item.IsStarred = true })
	s.registerStatusTool("unstar_item", "Remove the star from an item.", func(item *models.Item) { item.IsStarred = false })
}

func (s *Server) registerListFeedsTool() {
	tool := mcp.Tool{
		Name:        "list_feeds",
		Description: "Retrieve all subscribed feeds with their folders and unread counts. Use this to see the catalog before other operations.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListFeeds)
}

func (s *Server) registerListItemsTool() {
	tool := mcp.Tool{
		Name:        "list_items",
		Description: "List catalog items, newest first. Optionally filter to one feed or to unread items, and cap the number returned.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"feed_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional feed id to limit results to one feed.",
				},
				"unread_only": map[string]interface{}{
					"type":        "boolean",
					"description": "When true, only unread items are returned.",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of items to return. Defaults to 50.",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListItems)
}

func (s *Server) registerGetItemTool() {
	tool := mcp.Tool{
		Name:        "get_item",
		Description: "Fetch one item with its full stored content and estimated reading time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"item_id": map[string]interface{}{
					"type":        "string",
					"description": "The item id, as returned by list_items.",
				},
			},
			Required: []string{"item_id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetItem)
}

func (s *Server) registerStatusTool(name, description string, apply func(*models.Item)) {
	tool := mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"item_id": map[string]interface{}{
					"type":        "string",
					"description": "The item id, as returned by list_items.",
				},
			},
			Required: []string{"item_id"},
		},
	}
	s.mcpServer.AddTool(tool, func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SetStatusInput
		if err := req.BindArguments(&input); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if err := s.catalog.MutateItem(input.ItemID, apply); err != nil {
			return nil, fmt.Errorf("updating item: %w", err)
		}
		return marshalResult(StatusOutput{Success: true, ItemID: input.ItemID, Message: name + " applied"})
	})
}

func (s *Server) handleListFeeds(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts := s.catalog.UnreadCounts()
	feeds := s.catalog.Feeds()
	outputs := make([]FeedOutput, 0, len(feeds))
	for _, feed := range feeds {
		outputs = append(outputs, FeedOutput{
			ID:          feed.ID,
			Name:        feed.Name,
			URL:         feed.EndpointURL,
			SourceKind:  string(feed.SourceKind),
			Folder:      feed.FolderPath,
			UnreadCount: counts[feed.ID],
		})
	}
	return marshalResult(ListFeedsOutput{
		Feeds:   outputs,
		Count:   len(outputs),
		Folders: s.catalog.Folders(),
	})
}

func (s *Server) handleListItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListItemsInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	limit := 50
	if input.Limit != nil && *input.Limit > 0 {
		limit = *input.Limit
	}

	var items []*models.Item
	if input.FeedID != nil && *input.FeedID != "" {
		items = s.catalog.ItemsForFeed(*input.FeedID)
	} else {
		items = s.catalog.Items()
	}

	outputs := make([]ItemOutput, 0, limit)
	for _, item := range items {
		if input.UnreadOnly != nil && *input.UnreadOnly && item.IsRead {
			continue
		}
		outputs = append(outputs, itemOutput(item))
		if len(outputs) >= limit {
			break
		}
	}
	return marshalResult(ListItemsOutput{Items: outputs, Count: len(outputs)})
}

func (s *Server) handleGetItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetItemInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	item, err := s.catalog.Item(input.ItemID)
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}
	body := item.FullContent
	if body == "" {
		body = item.Content
	}
	return marshalResult(GetItemOutput{
		ItemOutput:  itemOutput(item),
		Content:     body,
		ReadMinutes: content.ReadTime(body),
	})
}

func itemOutput(item *models.Item) ItemOutput {
	return ItemOutput{
		ID:          item.ID,
		FeedID:      item.FeedID,
		FeedName:    item.FeedName,
		Title:       item.Title,
		URL:         item.URL,
		Author:      item.Author,
		Excerpt:     item.Excerpt,
		PublishedAt: item.PublishedAt,
		IsRead:      item.IsRead,
		IsStarred:   item.IsStarred,
	}
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
