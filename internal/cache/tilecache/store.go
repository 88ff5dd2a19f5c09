// Package tilecache stores raw vector tile bytes keyed by tile address.
package tilecache

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammed-shakir/propscope/internal/cache/keys"
	"github.com/mohammed-shakir/propscope/internal/cache/redisstore"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
)

// Store caches tile bodies as fetched, before decoding.
type Store interface {
	Get(ctx context.Context, source string, z, x, y int) ([]byte, bool, error)
	Put(ctx context.Context, source string, z, x, y int, body []byte) error
}

type redisStore struct {
	cli      *redisstore.Client
	upstream string
	ttl      time.Duration
}

// NewRedisStore returns a Store scoped to one tile service base URL.
func NewRedisStore(cli *redisstore.Client, upstream string, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStore{cli: cli, upstream: upstream, ttl: ttl}
}

func (s *redisStore) Get(ctx context.Context, source string, z, x, y int) ([]byte, bool, error) {
	k := keys.TileKey(s.upstream, source, z, x, y)
	body, ok, err := s.cli.Get(ctx, k)
	if err != nil {
		return nil, false, fmt.Errorf("tilecache get %q: %w", k, err)
	}
	if ok {
		observability.IncTileCache("hit")
	} else {
		observability.IncTileCache("miss")
	}
	return body, ok, nil
}

func (s *redisStore) Put(ctx context.Context, source string, z, x, y int, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	k := keys.TileKey(s.upstream, source, z, x, y)
	if err := s.cli.Set(ctx, k, body, s.ttl); err != nil {
		return fmt.Errorf("tilecache put %q: %w", k, err)
	}
	return nil
}

// Nop never hits and drops writes.
type Nop struct{}

func (Nop) Get(context.Context, string, int, int, int) ([]byte, bool, error) { return nil, false, nil }

func (Nop) Put(context.Context, string, int, int, int, []byte) error { return nil }
