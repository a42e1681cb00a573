// Package embedstore publishes trained embedding tables to Redis so that other
// services can read vectors without calling this one.
package embedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

var ErrNotFound = errors.New("embedstore: not found")

type Store struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// New returns (nil, nil) when no address is configured.
func New(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("embedstore: logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("embedstore: redis ping: %w", err)
	}
	return NewFromClient(rdb, cfg.KeyPrefix, cfg.TTL.Duration, log), nil
}

func NewFromClient(rdb *goredis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "riskgraph"
	}
	return &Store{
		log:    log.With("service", "EmbedStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) tableKey(version int) string {
	return fmt.Sprintf("%s:embeddings:v%d", s.prefix, version)
}

func (s *Store) currentKey() string {
	return s.prefix + ":embeddings:current"
}

// publishRetries bounds optimistic retries when another publisher moves "current" concurrently.
const publishRetries = 3

// Publish writes the whole table under a versioned hash, points "current" at it and
// deletes the hash "current" pointed at before, all in one transaction.
func (s *Store) Publish(ctx context.Context, version int, table map[string][]float64) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("embedstore: not initialized")
	}
	fields := make(map[string]any, len(table))
	for id, vec := range table {
		raw, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("embedstore: encode %q: %w", id, err)
		}
		fields[id] = raw
	}

	key := s.tableKey(version)
	current := s.currentKey()
	publish := func(tx *goredis.Tx) error {
		prev, err := tx.Get(ctx, current).Int()
		hasPrev := err == nil
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key)
			if len(fields) > 0 {
				p.HSet(ctx, key, fields)
			}
			if s.ttl > 0 {
				p.Expire(ctx, key, s.ttl)
			}
			p.Set(ctx, current, version, 0)
			if hasPrev && prev != version {
				p.Del(ctx, s.tableKey(prev))
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < publishRetries; attempt++ {
		err = s.rdb.Watch(ctx, publish, current)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("embedstore: publish v%d: %w", version, err)
	}
	s.log.Info("embedding table published", "version", version, "nodes", len(table))
	return nil
}

func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	raw, err := s.rdb.Get(ctx, s.currentKey()).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// Get reads one vector from the current table.
func (s *Store) Get(ctx context.Context, id string) ([]float64, error) {
	version, err := s.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.HGet(ctx, s.tableKey(version), id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("embedstore: decode %q: %w", id, err)
	}
	return vec, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
