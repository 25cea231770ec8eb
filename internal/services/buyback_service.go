// internal/services/buyback_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// BuybackService lets an owner sell a bar back to a dealer at the counter.
// The unit is valued at the metal price snapshotted when it was originally
// sold; when no sale record exists (imported or claimed stock with no order
// line) the current fresh price is used instead and the receipt says so.
//
// Metal value and wage refund are two distinct ledger entries so statements
// show the refunded labor charge separately from the metal.
type BuybackService struct {
	db            *gorm.DB
	ledger        *LedgerService
	inventory     *InventoryService
	pricing       *PricingService
	settings      *SettingsService
	notifications *NotificationService
}

func NewBuybackService(db *gorm.DB, ledger *LedgerService, inventory *InventoryService, pricing *PricingService, settings *SettingsService, notifications *NotificationService) *BuybackService {
	return &BuybackService{
		db:            db,
		ledger:        ledger,
		inventory:     inventory,
		pricing:       pricing,
		settings:      settings,
		notifications: notifications,
	}
}

type BuybackRequest struct {
	SerialCode string    `json:"serial_code" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
}

// Buyback settles the repurchase: the dealer pays from their cash balance,
// the seller receives metal value plus a wage refund, and the unit transfers
// to the dealer sold -> sold with custody at the buying location.
func (s *BuybackService) Buyback(ctx context.Context, sellerID uuid.UUID, req *BuybackRequest) (*models.Buyback, error) {
	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snap.BuybackEnabled {
		return nil, NewInvalidState("buyback is currently disabled")
	}

	unit, err := s.inventory.GetUnitBySerial(req.SerialCode)
	if err != nil {
		return nil, err
	}
	if unit.Status != models.UnitStatusSold || unit.OwnerID == nil || *unit.OwnerID != sellerID {
		return nil, NewInvalidOwnership("unit is not owned by the seller")
	}

	var location models.Location
	if err := s.db.Preload("Dealer").Where("id = ? AND active = ?", req.LocationID, true).
		First(&location).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("location")
		}
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	dealerUserID := location.Dealer.UserID

	// Value the unit. Original sale snapshot when one exists, otherwise the
	// current fresh price. Both reads happen before the transaction opens.
	metalValue, wage, basis, err := s.valueUnit(ctx, unit, snap.PriceFreshness)
	if err != nil {
		return nil, err
	}
	wageRefund := wage * snap.WageRefundPercent / 100

	var buyback *models.Buyback
	err = runInTx(s.db, func(tx *gorm.DB) error {
		locked, err := lockUnit(tx, unit.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.UnitStatusSold || locked.OwnerID == nil || *locked.OwnerID != sellerID {
			return NewInvalidOwnership("unit is not owned by the seller")
		}

		buyback = &models.Buyback{
			UnitID:     locked.ID,
			SellerID:   sellerID,
			DealerID:   dealerUserID,
			MetalValue: metalValue,
			WageRefund: wageRefund,
			PriceBasis: basis,
		}
		if err := tx.Create(buyback).Error; err != nil {
			return fmt.Errorf("failed to create buyback: %w", err)
		}

		ledger := s.ledger.WithTx(tx)
		payRef := Reference{Type: "buyback", ID: buyback.ID.String()}
		if _, err := ledger.Withdraw(dealerUserID, models.AssetCash, metalValue+wageRefund, true, payRef); err != nil {
			return err
		}
		if _, err := ledger.Deposit(sellerID, models.AssetCash, metalValue, payRef); err != nil {
			return err
		}
		if wageRefund > 0 {
			wageRef := Reference{Type: "buyback_wage", ID: buyback.ID.String()}
			if _, err := ledger.Refund(sellerID, models.AssetCash, wageRefund, wageRef); err != nil {
				return err
			}
		}

		inv := s.inventory.WithTx(tx)
		reason := fmt.Sprintf("buyback %s", buyback.ID)
		if _, err := inv.TransferOwnership(locked.ID, sellerID, &dealerUserID, reason); err != nil {
			return err
		}
		if err := tx.Model(&models.Unit{}).Where("id = ?", locked.ID).
			Update("location_id", location.ID).Error; err != nil {
			return fmt.Errorf("failed to move unit to buying location: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		go s.notifications.NotifyBuyback(buyback)
	}
	return buyback, nil
}

// ListForSeller returns a seller's buyback history, newest first.
func (s *BuybackService) ListForSeller(sellerID uuid.UUID, page, limit int) ([]models.Buyback, int64, error) {
	query := s.db.Model(&models.Buyback{}).Where("seller_id = ?", sellerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count buybacks: %w", err)
	}

	var buybacks []models.Buyback
	offset := (page - 1) * limit
	if err := query.Preload("Unit").Preload("Unit.Product").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&buybacks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch buybacks: %w", err)
	}
	return buybacks, total, nil
}

// valueUnit prices the repurchase. The original sale line, when present,
// fixes both the per-gram price and the wage; the fallback re-reads the
// current price and takes the wage from the product.
func (s *BuybackService) valueUnit(ctx context.Context, unit *models.Unit, freshness time.Duration) (metalValue, wage int64, basis models.PriceBasis, err error) {
	var line models.OrderLine
	lineErr := s.db.Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("order_lines.unit_id = ? AND orders.status = ?", unit.ID, models.OrderStatusPaid).
		Order("order_lines.created_at DESC").First(&line).Error

	if lineErr == nil {
		return BuybackValue(&unit.Product, line.PricePerGram), line.Wage, models.PriceBasisOriginalSale, nil
	}
	if !errors.Is(lineErr, gorm.ErrRecordNotFound) {
		return 0, 0, "", fmt.Errorf("failed to load sale line: %w", lineErr)
	}

	point, err := s.pricing.RequireFreshWithin(ctx, unit.Product.Metal, freshness)
	if err != nil {
		return 0, 0, "", err
	}
	return BuybackValue(&unit.Product, point.PricePerGram), unit.Product.Wage, models.PriceBasisCurrent, nil
}
