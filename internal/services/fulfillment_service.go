// internal/services/fulfillment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// FulfillmentService moves wholesale stock to dealer locations. A bulk order
// has no reservation phase: sufficiency is checked by locking every line's
// candidate units before a single unit is moved, so a shortfall on line N
// leaves lines 1..N-1 untouched.
type FulfillmentService struct {
	db         *gorm.DB
	ledger     *LedgerService
	pricing    *PricingService
	settings   *SettingsService
	treasuryID uuid.UUID
}

func NewFulfillmentService(db *gorm.DB, ledger *LedgerService, pricing *PricingService, settings *SettingsService, treasuryID uuid.UUID) *FulfillmentService {
	return &FulfillmentService{
		db:         db,
		ledger:     ledger,
		pricing:    pricing,
		settings:   settings,
		treasuryID: treasuryID,
	}
}

type FulfillmentItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=500"`
}

type FulfillmentRequest struct {
	LocationID uuid.UUID         `json:"location_id" binding:"required"`
	Items      []FulfillmentItem `json:"items" binding:"required,min=1,max=50,dive"`
}

// mergeFulfillmentItems folds repeated product ids into one item, keeping
// first-seen order. A repeated product must not reach the selection loop:
// SKIP LOCKED only skips other transactions' locks, so a second select for
// the same product inside the same transaction returns the rows the first
// select already took, and the charge loop would bill them twice.
func mergeFulfillmentItems(items []FulfillmentItem) []FulfillmentItem {
	merged := make([]FulfillmentItem, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// FulfillBulk sells wholesale stock to a dealer and moves custody to their
// location in one transaction. The dealer pays metal value plus wage at the
// current fresh price, no retail tax; proceeds go to the treasury. Units
// stay assigned, they are dealer shelf stock, not owned bars.
func (s *FulfillmentService) FulfillBulk(ctx context.Context, dealerUserID uuid.UUID, req *FulfillmentRequest) (*models.Order, error) {
	var dealer models.DealerProfile
	err := s.db.Where("user_id = ? AND active = ?", dealerUserID, true).First(&dealer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewInvalidOwnership("user has no active dealer profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dealer profile: %w", err)
	}
	var locCount int64
	if err := s.db.Model(&models.Location{}).
		Where("id = ? AND dealer_id = ? AND active = ?", req.LocationID, dealer.ID, true).
		Count(&locCount).Error; err != nil {
		return nil, fmt.Errorf("failed to check location: %w", err)
	}
	if locCount == 0 {
		return nil, NewInvalidOwnership("location does not belong to this dealer")
	}

	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	items := mergeFulfillmentItems(req.Items)

	// Products and prices up front, outside the transaction.
	products := make(map[uuid.UUID]*models.Product, len(items))
	points := make(map[models.Metal]*PricePoint)
	for _, item := range items {
		var product models.Product
		err := s.db.Where("id = ? AND active = ?", item.ProductID, true).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("product")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		products[item.ProductID] = &product
		if _, ok := points[product.Metal]; !ok {
			point, err := s.pricing.RequireFreshWithin(ctx, product.Metal, snap.PriceFreshness)
			if err != nil {
				return nil, err
			}
			points[product.Metal] = point
		}
	}

	var order *models.Order
	err = runInTx(s.db, func(tx *gorm.DB) error {
		// Lock candidates for every line first. Nothing moves until all
		// lines are known to be satisfiable.
		selected := make(map[uuid.UUID][]models.Unit, len(items))
		for _, item := range items {
			var units []models.Unit
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("product_id = ? AND status = ? AND owner_id IS NULL AND holder_id IS NULL", item.ProductID, models.UnitStatusAssigned).
				Where("location_id IS NULL OR location_id <> ?", req.LocationID).
				Order("serial_code ASC").Limit(item.Quantity).
				Find(&units).Error; err != nil {
				return fmt.Errorf("failed to select units: %w", err)
			}
			if len(units) < item.Quantity {
				return NewInsufficientInventory(item.Quantity, len(units))
			}
			selected[item.ProductID] = units
		}

		now := time.Now()
		order = &models.Order{
			CustomerID: dealerUserID,
			Channel:    models.OrderChannelB2B,
			Status:     models.OrderStatusPaid,
			PaidAt:     &now,
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create bulk order: %w", err)
		}

		var total int64
		for _, item := range items {
			product := products[item.ProductID]
			point := points[product.Metal]
			metalValue := BuybackValue(product, point.PricePerGram)
			lineTotal := metalValue + product.Wage

			ids := make([]uuid.UUID, 0, item.Quantity)
			lines := make([]models.OrderLine, 0, item.Quantity)
			for _, unit := range selected[item.ProductID] {
				ids = append(ids, unit.ID)
				lines = append(lines, models.OrderLine{
					OrderID:      order.ID,
					UnitID:       unit.ID,
					ProductID:    product.ID,
					PricePerGram: point.PricePerGram,
					MetalValue:   metalValue,
					Wage:         product.Wage,
					LineTotal:    lineTotal,
				})
				total += lineTotal
			}
			if err := tx.Create(&lines).Error; err != nil {
				return fmt.Errorf("failed to create bulk order lines: %w", err)
			}
			order.Lines = append(order.Lines, lines...)

			if err := tx.Model(&models.Unit{}).Where("id IN ?", ids).
				Update("location_id", req.LocationID).Error; err != nil {
				return fmt.Errorf("failed to move units: %w", err)
			}
		}

		order.TotalAmount = total
		if err := tx.Model(order).Update("total_amount", total).Error; err != nil {
			return fmt.Errorf("failed to update bulk order total: %w", err)
		}

		ledger := s.ledger.WithTx(tx)
		ref := Reference{Type: "order", ID: order.ID.String()}
		if _, err := ledger.Withdraw(dealerUserID, models.AssetCash, total, true, ref); err != nil {
			return err
		}
		if _, err := ledger.Deposit(s.treasuryID, models.AssetCash, total, ref); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
