// internal/services/pricing_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// PricingService serves the cached spot price per metal and records feed
// updates. Prices are integers: minor currency units per gram.
//
// Reads go through Redis first; the database row of record is only touched
// on a cache miss. Staleness is always judged against the feed timestamp
// carried in the cached value, never against the cache TTL.
type PricingService struct {
	db        *gorm.DB
	cache     *redis.Client
	cacheTTL  time.Duration
	staleness time.Duration
}

func NewPricingService(db *gorm.DB, cache *redis.Client, cacheTTL, staleness time.Duration) *PricingService {
	return &PricingService{
		db:        db,
		cache:     cache,
		cacheTTL:  cacheTTL,
		staleness: staleness,
	}
}

// PricePoint is the stable snapshot handed to settlement: every line of one
// order is priced off a single PricePoint taken at the start of the flow.
type PricePoint struct {
	Metal        models.Metal `json:"metal"`
	PricePerGram int64        `json:"price_per_gram"`
	FeedAt       time.Time    `json:"feed_at"`
	Source       string       `json:"source"`
}

// Fresh reports whether the point is usable for settlement at time now.
func (p PricePoint) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(p.FeedAt) <= window
}

func priceCacheKey(metal models.Metal) string {
	return fmt.Sprintf("price:%s", metal)
}

// CurrentPrice returns the latest known price for a metal, regardless of
// age. Display surfaces use this; settlement must call RequireFresh.
func (s *PricingService) CurrentPrice(ctx context.Context, metal models.Metal) (*PricePoint, error) {
	if !metal.Valid() {
		return nil, fmt.Errorf("unknown metal %q", metal)
	}

	cached, err := s.cache.Get(ctx, priceCacheKey(metal)).Result()
	if err == nil {
		var point PricePoint
		if jsonErr := json.Unmarshal([]byte(cached), &point); jsonErr == nil {
			return &point, nil
		}
		// fall through to the database on a corrupt cache entry
	} else if !errors.Is(err, redis.Nil) {
		logrus.WithError(err).Warn("Price cache read failed, falling back to database")
	}

	var row models.MetalPrice
	dbErr := s.db.Where("metal = ?", metal).Order("feed_at DESC").First(&row).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return nil, NewStalePrice(metal)
	}
	if dbErr != nil {
		return nil, fmt.Errorf("failed to load price: %w", dbErr)
	}

	point := PricePoint{
		Metal:        row.Metal,
		PricePerGram: row.PricePerGram,
		FeedAt:       row.FeedAt,
		Source:       row.Source,
	}
	s.fillCache(ctx, point)
	return &point, nil
}

// RequireFresh returns the current price or STALE_PRICE when the latest feed
// is older than the configured freshness window. Settlement paths must use
// this or RequireFreshWithin.
func (s *PricingService) RequireFresh(ctx context.Context, metal models.Metal) (*PricePoint, error) {
	return s.RequireFreshWithin(ctx, metal, s.staleness)
}

// RequireFreshWithin is RequireFresh with a caller-supplied window.
// Settlement flows pass the price_freshness_s tunable from their settings
// snapshot; a non-positive window falls back to the configured default.
func (s *PricingService) RequireFreshWithin(ctx context.Context, metal models.Metal, window time.Duration) (*PricePoint, error) {
	if window <= 0 {
		window = s.staleness
	}
	point, err := s.CurrentPrice(ctx, metal)
	if err != nil {
		return nil, err
	}
	if !point.Fresh(time.Now(), window) {
		return nil, NewStalePrice(metal)
	}
	return point, nil
}

// RecordPrice persists a new feed observation and refreshes the cache.
// Out-of-order feed rows are accepted; reads always take the newest FeedAt.
func (s *PricingService) RecordPrice(ctx context.Context, metal models.Metal, pricePerGram int64, feedAt time.Time, source string) (*models.MetalPrice, error) {
	if !metal.Valid() {
		return nil, fmt.Errorf("unknown metal %q", metal)
	}
	if pricePerGram <= 0 {
		return nil, ErrInvalidAmount
	}

	row := &models.MetalPrice{
		Metal:        metal,
		PricePerGram: pricePerGram,
		FeedAt:       feedAt,
		Source:       source,
	}
	if err := s.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record price: %w", err)
	}

	s.fillCache(ctx, PricePoint{
		Metal:        metal,
		PricePerGram: pricePerGram,
		FeedAt:       feedAt,
		Source:       source,
	})

	logrus.WithFields(logrus.Fields{
		"metal":          metal,
		"price_per_gram": pricePerGram,
		"source":         source,
	}).Info("Metal price recorded")
	return row, nil
}

// AllCurrent returns the latest point for every supported metal that has at
// least one feed row. Missing metals are omitted, not errors.
func (s *PricingService) AllCurrent(ctx context.Context) ([]PricePoint, error) {
	metals := []models.Metal{models.MetalGold, models.MetalSilver, models.MetalPlatinum}
	points := make([]PricePoint, 0, len(metals))
	for _, metal := range metals {
		point, err := s.CurrentPrice(ctx, metal)
		if err != nil {
			if derr, ok := AsDomainError(err); ok && derr.Code == CodeStalePrice {
				continue
			}
			return nil, err
		}
		points = append(points, *point)
	}
	return points, nil
}

func (s *PricingService) fillCache(ctx context.Context, point PricePoint) {
	payload, err := json.Marshal(point)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, priceCacheKey(point.Metal), payload, s.cacheTTL).Err(); err != nil {
		logrus.WithError(err).Warn("Price cache write failed")
	}
}
