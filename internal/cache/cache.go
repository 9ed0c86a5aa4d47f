// Package cache provides a content-addressed data cache with TTL-based
// invalidation. Keys are derived from the request parameters, so identical
// fetches always hit the same entry. A Redis backend is preferred when
// available, with transparent fallback to a local file store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsight-ai/finsight/internal/observability"
)

// ErrNotFound is returned when a key has no live entry in any backend.
var ErrNotFound = errors.New("cache: entry not found")

// Market classifies an instrument subject by its listing venue.
// The classification drives TTL selection: mainland data sources update
// on different cadences than US ones.
type Market string

const (
	MarketChina    Market = "cn"
	MarketHongKong Market = "hk"
	MarketUS       Market = "us"
)

// Kind identifies the category of cached payload.
type Kind string

const (
	KindPrice        Kind = "price"
	KindNews         Kind = "news"
	KindFundamentals Kind = "fundamentals"
	KindSentiment    Kind = "sentiment"
)

// Entry is the stored unit: the payload plus enough metadata to decide
// freshness at read time.
type Entry struct {
	Subject   string    `json:"subject"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Source    string    `json:"source"`
	Kind      Kind      `json:"kind"`
	Payload   []byte    `json:"payload"`
	WrittenAt time.Time `json:"written_at"`
	Backend   string    `json:"backend"`
}

// Backend is the storage contract shared by the Redis and file stores.
type Backend interface {
	Put(ctx context.Context, key string, entry *Entry) error
	Get(ctx context.Context, key string) (*Entry, error)
	Delete(ctx context.Context, key string) error
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// ClassifyMarket maps a subject identifier to its market.
// Six-digit numeric codes are mainland A-shares, five-digit codes or a
// ".HK" suffix are Hong Kong listings, everything else is treated as US.
func ClassifyMarket(subject string) Market {
	s := strings.TrimSpace(subject)
	if strings.HasSuffix(strings.ToUpper(s), ".HK") {
		return MarketHongKong
	}
	if isDigits(s) {
		switch len(s) {
		case 6:
			return MarketChina
		case 5:
			return MarketHongKong
		}
	}
	return MarketUS
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ttlTable holds the freshness budget per (market, kind). Price data goes
// stale fast; fundamentals change quarterly so a long TTL is safe.
var ttlTable = map[Market]map[Kind]time.Duration{
	MarketChina: {
		KindPrice:        15 * time.Minute,
		KindNews:         2 * time.Hour,
		KindFundamentals: 24 * time.Hour,
		KindSentiment:    4 * time.Hour,
	},
	MarketHongKong: {
		KindPrice:        15 * time.Minute,
		KindNews:         2 * time.Hour,
		KindFundamentals: 24 * time.Hour,
		KindSentiment:    4 * time.Hour,
	},
	MarketUS: {
		KindPrice:        30 * time.Minute,
		KindNews:         4 * time.Hour,
		KindFundamentals: 48 * time.Hour,
		KindSentiment:    6 * time.Hour,
	},
}

const defaultTTL = time.Hour

// TTL returns the freshness budget for a subject's market and data kind.
func TTL(subject string, kind Kind) time.Duration {
	market := ClassifyMarket(subject)
	if kinds, ok := ttlTable[market]; ok {
		if ttl, ok := kinds[kind]; ok {
			return ttl
		}
	}
	return defaultTTL
}

// Key derives the content address for a fetch request. The same
// parameters always produce the same key.
func Key(subject, start, end, source string, kind Kind) string {
	h := sha256.Sum256([]byte(subject + "|" + start + "|" + end + "|" + source + "|" + string(kind)))
	return "finsight:cache:" + hex.EncodeToString(h[:16])
}

// Cache is the two-tier store. Writes go to the primary backend and fall
// back to the secondary on failure; reads try primary first. Freshness is
// evaluated against the entry's write timestamp at read time, so evicting
// stale entries is not the backends' responsibility.
type Cache struct {
	primary   Backend
	secondary Backend
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache over the given backends. secondary may be nil when no
// fallback is configured.
func New(primary, secondary Backend, opts ...Option) *Cache {
	c := &Cache{
		primary:   primary,
		secondary: secondary,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Save stores a payload and returns its content-addressed key.
func (c *Cache) Save(ctx context.Context, subject, start, end, source string, kind Kind, payload []byte) (string, error) {
	key := Key(subject, start, end, source, kind)
	entry := &Entry{
		Subject:   subject,
		Start:     start,
		End:       end,
		Source:    source,
		Kind:      kind,
		Payload:   payload,
		WrittenAt: c.now(),
	}

	entry.Backend = c.primary.Name()
	if err := c.primary.Put(ctx, key, entry); err != nil {
		observability.RecordCacheOp(c.primary.Name(), "put", "error")
		if c.secondary == nil {
			return "", fmt.Errorf("cache save: %w", err)
		}
		log.Warn().Err(err).Str("backend", c.primary.Name()).Msg("cache write failed, falling back")
		entry.Backend = c.secondary.Name()
		if ferr := c.secondary.Put(ctx, key, entry); ferr != nil {
			observability.RecordCacheOp(c.secondary.Name(), "put", "error")
			return "", fmt.Errorf("cache save fallback: %w", ferr)
		}
		observability.RecordCacheOp(c.secondary.Name(), "put", "ok")
		return key, nil
	}
	observability.RecordCacheOp(c.primary.Name(), "put", "ok")
	return key, nil
}

// Load retrieves the payload for a key if a live entry exists. Entries past
// their TTL are treated as absent and removed from the backend they came
// from.
func (c *Cache) Load(ctx context.Context, key string) ([]byte, error) {
	entry, backend, err := c.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	ttl := TTL(entry.Subject, entry.Kind)
	if c.now().After(entry.WrittenAt.Add(ttl)) {
		observability.RecordCacheOp(backend.Name(), "get", "expired")
		_ = backend.Delete(ctx, key)
		return nil, ErrNotFound
	}

	observability.RecordCacheOp(backend.Name(), "get", "hit")
	return entry.Payload, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (*Entry, Backend, error) {
	entry, err := c.primary.Get(ctx, key)
	if err == nil {
		return entry, c.primary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		observability.RecordCacheOp(c.primary.Name(), "get", "error")
		log.Warn().Err(err).Str("backend", c.primary.Name()).Msg("cache read failed, falling back")
	} else {
		observability.RecordCacheOp(c.primary.Name(), "get", "miss")
	}

	if c.secondary == nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("cache load: %w", err)
	}

	entry, err = c.secondary.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordCacheOp(c.secondary.Name(), "get", "miss")
			return nil, nil, ErrNotFound
		}
		observability.RecordCacheOp(c.secondary.Name(), "get", "error")
		return nil, nil, fmt.Errorf("cache load fallback: %w", err)
	}
	return entry, c.secondary, nil
}

// Ping reports whether the primary backend is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.primary.Ping(ctx)
}

// Close releases both backends.
func (c *Cache) Close() error {
	err := c.primary.Close()
	if c.secondary != nil {
		if serr := c.secondary.Close(); err == nil {
			err = serr
		}
	}
	return err
}
