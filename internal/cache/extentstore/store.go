// Package extentstore caches merge responses by request key. It is purely
// an acceleration layer: a miss recomputes from the posted records, so
// nothing here is a system of record.
package extentstore

import (
	"context"
	"fmt"
	"time"

	"github.com/geoharvest/extentd/internal/cache/keys"
	"github.com/geoharvest/extentd/internal/cache/redisstore"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte, ttl time.Duration) error

	// Invalidate drops every cached extent of one source and returns how
	// many keys were removed.
	Invalidate(ctx context.Context, source string) (int, error)
}

type redisExtentStore struct {
	cli        *redisstore.Client
	defaultTTL time.Duration
}

func NewRedisStore(cli *redisstore.Client, defaultTTL time.Duration) Store {
	return &redisExtentStore{cli: cli, defaultTTL: defaultTTL}
}

func (s *redisExtentStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.cli.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("extentstore GET %q: %w", key, err)
	}
	return body, ok, nil
}

func (s *redisExtentStore) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	t := ttl
	if t <= 0 {
		t = s.defaultTTL
	}
	if err := s.cli.Set(ctx, key, body, t); err != nil {
		return fmt.Errorf("extentstore SET %q: %w", key, err)
	}
	return nil
}

func (s *redisExtentStore) Invalidate(ctx context.Context, source string) (int, error) {
	matched, err := s.cli.ScanKeys(ctx, keys.SourcePattern(source))
	if err != nil {
		return 0, fmt.Errorf("extentstore scan source %q: %w", source, err)
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := s.cli.Del(ctx, matched...); err != nil {
		return 0, fmt.Errorf("extentstore del source %q: %w", source, err)
	}
	return len(matched), nil
}
