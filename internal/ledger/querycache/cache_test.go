package querycache

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyDeterministic(t *testing.T) {
	a := BuildKey("balance", "range", map[string]string{"account_id": "7", "date_from": "2025-01-01", "date_to": "2025-01-31"})
	b := BuildKey("balance", "range", map[string]string{"date_to": "2025-01-31", "account_id": "7", "date_from": "2025-01-01"})
	require.Equal(t, a, b)
	require.Equal(t, "balance:range:account_id=7:date_from=2025-01-01:date_to=2025-01-31", a)
}

func TestBuildKeyElidesNils(t *testing.T) {
	key := BuildKey("balance", "current", map[string]string{"account_id": "7", "date_to": DateParam(nil)})
	require.Equal(t, "balance:current:account_id=7:date_to=none", key)
}

func TestBuildKeyHashFallback(t *testing.T) {
	params := map[string]string{}
	for _, r := range "abcdefghijklmnopqrst" {
		params[strings.Repeat(string(r), 12)] = strings.Repeat("v", 12)
	}
	key := BuildKey("report", "wide", params)
	require.True(t, strings.HasPrefix(key, "report:hash:"))
	require.Len(t, strings.TrimPrefix(key, "report:hash:"), 64)
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(NewRedisStore(client)), mr
}

type balancePayload struct {
	Amount string `json:"amount"`
}

func TestRedisRoundTrip(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()
	key := BuildKey("balance", "current", map[string]string{"account_id": "7"})

	cache.SetJSON(ctx, key, balancePayload{Amount: "8000.00"}, TTLCurrentBalance)

	var got balancePayload
	require.True(t, cache.GetJSON(ctx, key, &got))
	require.Equal(t, "8000.00", got.Amount)
}

func TestInvalidateAccountsDropsBalanceAndTrialBalance(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	keep := BuildKey("balance", "current", map[string]string{"account_id": "9"})
	drop := BuildKey("balance", "current", map[string]string{"account_id": "7"})
	tb := BuildKey("trial_balance", "full", map[string]string{"as_of": "2025-01-31"})
	income := BuildKey("income_statement", "jan", nil)

	for _, k := range []string{keep, drop, tb, income} {
		cache.SetJSON(ctx, k, balancePayload{Amount: "1.00"}, TTLReport)
	}

	require.NoError(t, cache.InvalidateAccounts(ctx, []int64{7}))

	var got balancePayload
	require.True(t, cache.GetJSON(ctx, keep, &got))
	require.False(t, cache.GetJSON(ctx, drop, &got))
	require.False(t, cache.GetJSON(ctx, tb, &got))
	require.True(t, cache.GetJSON(ctx, income, &got))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "balance:current:account_id=1", []byte(`{}`), time.Minute))
	_, err := store.Get(ctx, "balance:current:account_id=1")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = store.Get(ctx, "balance:current:account_id=1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStorePatternDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "trial_balance:full:as_of=2025-01-31", []byte(`{}`), time.Minute)
	_ = store.Set(ctx, "balance:current:account_id=7", []byte(`{}`), time.Minute)

	require.NoError(t, store.DeletePattern(ctx, "trial_balance:*"))
	_, err := store.Get(ctx, "trial_balance:full:as_of=2025-01-31")
	require.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, "balance:current:account_id=7")
	require.NoError(t, err)
}

func TestCacheMissOnBackendDown(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()
	key := BuildKey("balance", "current", map[string]string{"account_id": "7"})
	cache.SetJSON(ctx, key, balancePayload{Amount: "1.00"}, TTLCurrentBalance)

	mr.Close()

	var got balancePayload
	require.False(t, cache.GetJSON(ctx, key, &got))
}
