package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

func cachedPoint(t *testing.T, point PricePoint) string {
	t.Helper()
	payload, err := json.Marshal(point)
	require.NoError(t, err)
	return string(payload)
}

func TestPricePoint_Fresh(t *testing.T) {
	now := time.Now()
	window := 5 * time.Minute

	assert.True(t, PricePoint{FeedAt: now}.Fresh(now, window))
	assert.True(t, PricePoint{FeedAt: now.Add(-window)}.Fresh(now, window))
	assert.False(t, PricePoint{FeedAt: now.Add(-window - time.Second)}.Fresh(now, window))
}

func TestPricingService_CurrentPriceFromCache(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	want := PricePoint{
		Metal:        models.MetalGold,
		PricePerGram: 4_000_000,
		FeedAt:       time.Now().UTC().Truncate(time.Second),
		Source:       "feed-a",
	}
	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, want))

	got, err := svc.CurrentPrice(context.Background(), models.MetalGold)
	require.NoError(t, err)
	assert.Equal(t, want.PricePerGram, got.PricePerGram)
	assert.True(t, want.FeedAt.Equal(got.FeedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricingService_CurrentPriceRejectsUnknownMetal(t *testing.T) {
	cache, _ := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	_, err := svc.CurrentPrice(context.Background(), models.Metal("tin"))
	assert.Error(t, err)
}

func TestPricingService_RequireFreshAcceptsRecentFeed(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	point := PricePoint{
		Metal:        models.MetalGold,
		PricePerGram: 4_000_000,
		FeedAt:       time.Now().Add(-time.Minute),
		Source:       "feed-a",
	}
	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, point))

	got, err := svc.RequireFresh(context.Background(), models.MetalGold)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), got.PricePerGram)
}

func TestPricingService_RequireFreshRejectsOldFeed(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	// The cache entry is alive but the feed timestamp inside it is past the
	// freshness window: staleness follows the feed, not the cache TTL.
	point := PricePoint{
		Metal:        models.MetalGold,
		PricePerGram: 4_000_000,
		FeedAt:       time.Now().Add(-6 * time.Minute),
		Source:       "feed-a",
	}
	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, point))

	_, err := svc.RequireFresh(context.Background(), models.MetalGold)
	derr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeStalePrice, derr.Code)
	assert.True(t, derr.Retryable)
}

func TestPricingService_RequireFreshWithinOverridesWindow(t *testing.T) {
	cache, mock := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	// A four minute old feed passes the configured five minute window but
	// fails a tightened operator window.
	point := PricePoint{
		Metal:        models.MetalGold,
		PricePerGram: 4_000_000,
		FeedAt:       time.Now().Add(-4 * time.Minute),
		Source:       "feed-a",
	}
	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, point))
	_, err := svc.RequireFreshWithin(context.Background(), models.MetalGold, 2*time.Minute)
	derr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeStalePrice, derr.Code)

	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, point))
	got, err := svc.RequireFreshWithin(context.Background(), models.MetalGold, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), got.PricePerGram)

	// A non-positive window falls back to the configured default.
	mock.ExpectGet("price:gold").SetVal(cachedPoint(t, point))
	got, err = svc.RequireFreshWithin(context.Background(), models.MetalGold, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), got.PricePerGram)
}

func TestPricingService_RecordPriceRejectsBadInput(t *testing.T) {
	cache, _ := redismock.NewClientMock()
	svc := NewPricingService(nil, cache, 30*time.Second, 5*time.Minute)

	_, err := svc.RecordPrice(context.Background(), models.Metal("tin"), 100, time.Now(), "feed-a")
	assert.Error(t, err)

	_, err = svc.RecordPrice(context.Background(), models.MetalGold, 0, time.Now(), "feed-a")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
