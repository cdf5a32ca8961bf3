package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type point struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func TestRedisCache_SetGetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client)
	ctx := context.Background()
	key := LatestCandleKey("Binance", "BTC/USDT")
	require.Equal(t, "binance:BTC/USDT:latest", key)

	require.NoError(t, c.Set(ctx, key, point{Symbol: "BTC/USDT", Close: 101.5}, LatestCandleTTL))
	require.Equal(t, LatestCandleTTL, mr.TTL(key))

	var got point
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 101.5, got.Close)

	mr.FastForward(LatestCandleTTL + time.Second)

	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_DecodeError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(AnalysisKey("ETH/USDT"), "not-json"))

	var got point
	_, err := NewRedisCache(client).Get(context.Background(), AnalysisKey("ETH/USDT"), &got)
	require.Error(t, err)
}
