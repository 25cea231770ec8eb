package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

func TestQuoteProduct(t *testing.T) {
	tests := []struct {
		name         string
		weightMg     int64
		wage         int64
		pricePerGram int64
		taxPercent   int64
		want         Quote
	}{
		{
			name:         "whole gram no remainder",
			weightMg:     5000,
			wage:         200_000,
			pricePerGram: 4_000_000,
			taxPercent:   9,
			want: Quote{
				PricePerGram: 4_000_000,
				MetalValue:   20_000_000,
				Wage:         200_000,
				Tax:          1_818_000,
				Total:        22_018_000,
			},
		},
		{
			name:         "sub-gram weight floors metal value",
			weightMg:     333,
			wage:         0,
			pricePerGram: 1_000_001,
			taxPercent:   9,
			want: Quote{
				PricePerGram: 1_000_001,
				MetalValue:   333_000, // 333,000,333 / 1000 floored
				Wage:         0,
				Tax:          29_970,
				Total:        362_970,
			},
		},
		{
			name:         "tax floors rather than rounds",
			weightMg:     1000,
			wage:         11,
			pricePerGram: 100,
			taxPercent:   9,
			want: Quote{
				PricePerGram: 100,
				MetalValue:   100,
				Wage:         11,
				Tax:          9, // 111 * 9 / 100 = 9.99 floored
				Total:        120,
			},
		},
		{
			name:         "zero tax percent",
			weightMg:     2500,
			wage:         50_000,
			pricePerGram: 3_000_000,
			taxPercent:   0,
			want: Quote{
				PricePerGram: 3_000_000,
				MetalValue:   7_500_000,
				Wage:         50_000,
				Tax:          0,
				Total:        7_550_000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := &models.Product{WeightMg: tt.weightMg, Wage: tt.wage}
			point := &PricePoint{PricePerGram: tt.pricePerGram}

			got := QuoteProduct(product, point, tt.taxPercent)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuybackValue(t *testing.T) {
	product := &models.Product{WeightMg: 333}

	// Same floor as the sale side: the metal value round-trips exactly when
	// the price has not moved.
	assert.Equal(t, int64(333_000), BuybackValue(product, 1_000_001))
	assert.Equal(t, int64(0), BuybackValue(product, 1))
}
