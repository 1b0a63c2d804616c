package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

func TestMemoryCache_RoundTripTyped(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := []bar{{"2024-01-02", 185.64}, {"2024-01-03", 184.25}}
	require.NoError(t, mc.Set(ctx, "history:AAPL", in, time.Minute))

	var out []bar
	require.NoError(t, mc.Get(ctx, "history:AAPL", &out))
	assert.Equal(t, in, out)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)

	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now most recent
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestLayeredCache_FillsL1FromL2(t *testing.T) {
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, 10, time.Minute)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "k", bar{"2024-01-02", 1.5}, time.Minute))

	var got bar
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 1.5, got.Close)

	// served from L1 after L2 loses the entry
	require.NoError(t, l2.Delete(ctx, "k"))
	got = bar{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "2024-01-02", got.Date)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "history:AAPL:365", GenerateKey("history", "AAPL", 365))
	assert.Equal(t, "plain", GenerateKey("plain"))
}
