package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMergeFulfillmentItems(t *testing.T) {
	p := uuid.New()
	q := uuid.New()

	t.Run("repeated product folds into one item", func(t *testing.T) {
		merged := mergeFulfillmentItems([]FulfillmentItem{
			{ProductID: p, Quantity: 1},
			{ProductID: p, Quantity: 1},
			{ProductID: q, Quantity: 2},
			{ProductID: p, Quantity: 3},
		})

		assert.Equal(t, []FulfillmentItem{
			{ProductID: p, Quantity: 5},
			{ProductID: q, Quantity: 2},
		}, merged)
	})

	t.Run("distinct products pass through unchanged", func(t *testing.T) {
		items := []FulfillmentItem{
			{ProductID: p, Quantity: 2},
			{ProductID: q, Quantity: 1},
		}
		assert.Equal(t, items, mergeFulfillmentItems(items))
	})
}
