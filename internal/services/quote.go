// internal/services/quote.go
package services

import (
	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// Quote is the priced breakdown of one unit at one price point. All fields
// are minor currency units; every division floors.
type Quote struct {
	PricePerGram int64 `json:"price_per_gram"`
	MetalValue   int64 `json:"metal_value"`
	Wage         int64 `json:"wage"`
	Tax          int64 `json:"tax"`
	Total        int64 `json:"total"`
}

// QuoteProduct prices one unit of a product off a price point.
//
//	metalValue = pricePerGram * weightMg / 1000   (floored)
//	tax        = (metalValue + wage) * taxPercent / 100   (floored)
//
// Flooring happens before anything is written to the ledger, so the sum of
// line totals is exactly what the buyer pays. Fractional remainders are
// dropped, never rounded up.
func QuoteProduct(product *models.Product, point *PricePoint, taxPercent int64) Quote {
	metalValue := point.PricePerGram * product.WeightMg / 1000
	tax := (metalValue + product.Wage) * taxPercent / 100
	return Quote{
		PricePerGram: point.PricePerGram,
		MetalValue:   metalValue,
		Wage:         product.Wage,
		Tax:          tax,
		Total:        metalValue + product.Wage + tax,
	}
}

// BuybackValue prices a unit the marketplace buys back: metal value at the
// given per-gram price, no tax. The wage refund is settled separately.
func BuybackValue(product *models.Product, pricePerGram int64) int64 {
	return pricePerGram * product.WeightMg / 1000
}
