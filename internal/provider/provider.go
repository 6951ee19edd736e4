// ABOUTME: Provider abstraction over third-party feed reader services
// ABOUTME: Tagged credential configs select among miniflux, feedbin, and greader wire protocols

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by all provider implementations.
var (
	ErrAuthFailed  = errors.New("provider authentication failed")
	ErrUnknownKind = errors.New("unknown provider kind")
)

// Provider kinds. freshrss and theoldreader share the greader wire
// protocol and differ only in default endpoint.
const (
	KindMiniflux     = "miniflux"
	KindFeedbin      = "feedbin"
	KindFreshRSS     = "freshrss"
	KindTheOldReader = "theoldreader"
)

// RemoteFeed is a subscription as the provider reports it.
type RemoteFeed struct {
	ID      string
	Title   string
	FeedURL string
	SiteURL string
}

// RemoteEntry is an entry as the provider reports it. Read/Starred
// reflect provider-side state at fetch time.
type RemoteEntry struct {
	ID          string
	FeedID      string
	Title       string
	URL         string
	Author      string
	Content     string
	PublishedAt *time.Time
	Read        bool
	Starred     bool
}

// Provider is the read/write surface shared by all reader services.
// Mutation calls are idempotent; an empty id list is a no-op and makes
// no network request.
type Provider interface {
	Kind() string
	TestConnection(ctx context.Context) error
	GetFeeds(ctx context.Context) ([]RemoteFeed, error)
	GetUnreadIDs(ctx context.Context) ([]string, error)
	GetStarredIDs(ctx context.Context) ([]string, error)
	GetEntries(ctx context.Context, since time.Time, limit int) ([]RemoteEntry, error)
	MarkAsRead(ctx context.Context, ids []string) error
	MarkAsUnread(ctx context.Context, ids []string) error
	StarEntries(ctx context.Context, ids []string) error
	UnstarEntries(ctx context.Context, ids []string) error
}

// Config is one credential variant per provider kind. Exactly one
// concrete type exists per kind; decoding picks the variant by tag.
type Config interface {
	Kind() string
}

// MinifluxConfig authenticates with a static API token.
type MinifluxConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

func (MinifluxConfig) Kind() string { return KindMiniflux }

// FeedbinConfig authenticates with HTTP basic credentials. BaseURL is
// optional and defaults to the hosted service.
type FeedbinConfig struct {
	BaseURL  string `json:"base_url,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (FeedbinConfig) Kind() string { return KindFeedbin }

// GReaderConfig authenticates with ClientLogin session tokens. Service
// is either freshrss or theoldreader.
type GReaderConfig struct {
	Service  string `json:"service"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c GReaderConfig) Kind() string { return c.Service }

// envelope carries the kind tag alongside the variant payload.
type envelope struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// EncodeConfig serializes a tagged config for persistence.
func EncodeConfig(cfg Config) ([]byte, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding provider config: %w", err)
	}
	return json.Marshal(envelope{Kind: cfg.Kind(), Config: payload})
}

// DecodeConfig deserializes a tagged config.
func DecodeConfig(raw []byte) (Config, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding provider config: %w", err)
	}
	switch env.Kind {
	case KindMiniflux:
		var cfg MinifluxConfig
		if err := json.Unmarshal(env.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decoding miniflux config: %w", err)
		}
		return cfg, nil
	case KindFeedbin:
		var cfg FeedbinConfig
		if err := json.Unmarshal(env.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decoding feedbin config: %w", err)
		}
		return cfg, nil
	case KindFreshRSS, KindTheOldReader:
		var cfg GReaderConfig
		if err := json.Unmarshal(env.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decoding greader config: %w", err)
		}
		cfg.Service = env.Kind
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// New constructs the provider for a config variant.
func New(cfg Config) (Provider, error) {
	switch c := cfg.(type) {
	case MinifluxConfig:
		return NewMiniflux(c), nil
	case FeedbinConfig:
		return NewFeedbin(c), nil
	case GReaderConfig:
		return NewGReader(c), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, cfg)
	}
}
