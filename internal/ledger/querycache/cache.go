package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Typed TTLs per cached value family.
const (
	TTLCurrentBalance    = 5 * time.Minute
	TTLHistoricalBalance = time.Hour
	TTLTrialBalance      = 30 * time.Minute
	TTLReport            = 30 * time.Minute
)

// maxKeyLength is the threshold beyond which keys collapse to a hash.
const maxKeyLength = 200

// ErrMiss reports an absent key.
var ErrMiss = errors.New("querycache: miss")

// Store is the two-operation cache contract. Implementations must treat
// every failure as a miss upstream; no ledger operation depends on cache
// liveness for correctness.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, glob string) error
}

// BuildKey composes `namespace:sub:k=v:…` with sorted parameters.
// Nil-like values should be passed as "none"; dates as ISO strings.
// Oversized keys are replaced by `namespace:hash:<sha256>`.
func BuildKey(namespace, sub string, params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			v = "none"
		}
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	key := namespace + ":" + sub
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	if len(key) > maxKeyLength {
		sum := sha256.Sum256([]byte(key))
		return namespace + ":hash:" + hex.EncodeToString(sum[:])
	}
	return key
}

// DateParam serializes an optional date for key building.
func DateParam(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format("2006-01-02")
}

// Cache layers JSON encoding over a Store. Monetary values are expected
// to be transported as strings inside the cached payloads.
type Cache struct {
	store Store
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// GetJSON loads and decodes a cached value. Any backend failure reads
// as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil || c.store == nil {
		return false
	}
	payload, err := c.store.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(payload, dest) == nil
}

// SetJSON encodes and stores a value; errors are swallowed.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.store.Set(ctx, key, payload, ttl)
}

// InvalidateAccounts drops cached balances of the given accounts and
// every trial balance, which aggregates over all accounts.
func (c *Cache) InvalidateAccounts(ctx context.Context, accountIDs []int64) error {
	if c == nil || c.store == nil {
		return nil
	}
	var firstErr error
	for _, id := range accountIDs {
		if err := c.store.DeletePattern(ctx, fmt.Sprintf("balance:*account_id=%d*", id)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.store.DeletePattern(ctx, "trial_balance:*"); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// FlushNamespace drops every key under a namespace.
func (c *Cache) FlushNamespace(ctx context.Context, namespace string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.DeletePattern(ctx, namespace+":*")
}
