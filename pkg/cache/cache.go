// Package cache memoizes evaluation results so repeated runs over an
// unchanged contract skip the expensive judge-backed evaluators. Entries are
// keyed by the contract's canonical content hash plus the evaluator set; a
// missing or unreachable cache degrades to recomputation, never to failure.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/aicert/pkg/canonicalize"
	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

const defaultTTL = 24 * time.Hour

// EvaluationCache stores evaluator result maps in Redis.
type EvaluationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis. The connection is verified lazily: an unreachable
// server turns every Get into a miss and every Set into a no-op.
func New(cfg Config) *EvaluationCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &EvaluationCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:    ttl,
		logger: slog.Default().With("component", "evaluation-cache"),
	}
}

// Key derives the cache key from the contract content and the evaluator set.
// Any change to the contract or the set of evaluators invalidates the entry.
func Key(contract *contracts.Contract, evaluatorNames []string) (string, error) {
	contractHash, err := canonicalize.CanonicalHash(contract)
	if err != nil {
		return "", fmt.Errorf("cache: hash contract: %w", err)
	}
	names := append([]string(nil), evaluatorNames...)
	sort.Strings(names)
	setHash := canonicalize.HashBytes([]byte(strings.Join(names, ",")))
	return "aicert:eval:" + contractHash + ":" + setHash[:16], nil
}

// Get returns the cached result map, or nil on miss. Redis errors are logged
// and reported as misses.
func (c *EvaluationCache) Get(ctx context.Context, key string) map[string]evaluation.EvaluationResult {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache unavailable, recomputing", "error", err)
		}
		return nil
	}
	var results map[string]evaluation.EvaluationResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Warn("corrupt cache entry, recomputing", "key", key, "error", err)
		return nil
	}
	return results
}

// Set stores a result map. Failures are logged and swallowed.
func (c *EvaluationCache) Set(ctx context.Context, key string, results map[string]evaluation.EvaluationResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("cache entry not serializable", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Close releases the Redis connection.
func (c *EvaluationCache) Close() error {
	return c.client.Close()
}
