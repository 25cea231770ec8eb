// internal/services/pos_service.go
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

// PosService handles counter sales. The customer is physically present: the
// dealer picks a bar off the shelf, the terminal takes the payment, and the
// sale finalizes through the claim-code path so a walk-in without an account
// can register ownership later.
//
// The short reservation taken at quote time only protects the bar while the
// terminal is processing; it uses the same allocator as web checkout, so a
// concurrent online order can never grab the same unit.
type PosService struct {
	db            *gorm.DB
	ledger        *LedgerService
	inventory     *InventoryService
	pricing       *PricingService
	settings      *SettingsService
	notifications *NotificationService
	treasuryID    uuid.UUID
}

func NewPosService(db *gorm.DB, ledger *LedgerService, inventory *InventoryService, pricing *PricingService, settings *SettingsService, notifications *NotificationService, treasuryID uuid.UUID) *PosService {
	return &PosService{
		db:            db,
		ledger:        ledger,
		inventory:     inventory,
		pricing:       pricing,
		settings:      settings,
		notifications: notifications,
		treasuryID:    treasuryID,
	}
}

// PosQuote is what the terminal shows while the customer decides.
type PosQuote struct {
	Order *models.Order `json:"order"`
	Unit  *models.Unit  `json:"unit"`
	Quote Quote         `json:"quote"`
}

// PosReceipt is returned after a confirmed counter sale. The claim code is
// printed on the paper receipt; presenting it later registers ownership.
type PosReceipt struct {
	Order      *models.Order `json:"order"`
	SerialCode string        `json:"serial_code"`
	ClaimCode  string        `json:"claim_code"`
}

// ReserveForPos picks one sellable unit of the product at the dealer's
// location, holds it for the POS window and returns a priced pending order.
func (s *PosService) ReserveForPos(ctx context.Context, dealerUserID, productID uuid.UUID, locationID uuid.UUID) (*PosQuote, error) {
	if _, err := s.dealerForLocation(dealerUserID, locationID); err != nil {
		return nil, err
	}

	var product models.Product
	err := s.db.Where("id = ? AND active = ?", productID, true).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	point, err := s.pricing.RequireFreshWithin(ctx, product.Metal, snap.PriceFreshness)
	if err != nil {
		return nil, err
	}
	quote := QuoteProduct(&product, point, snap.TaxPercent)

	var result *PosQuote
	err = runInTx(s.db, func(tx *gorm.DB) error {
		units, err := s.inventory.WithTx(tx).ReserveUnits(productID, dealerUserID, 1, snap.PosReservationTTL, &locationID)
		if err != nil {
			return err
		}
		unit := units[0]

		order := &models.Order{
			CustomerID:  dealerUserID,
			Channel:     models.OrderChannelPos,
			Status:      models.OrderStatusPending,
			TotalAmount: quote.Total,
			TaxAmount:   quote.Tax,
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create pos order: %w", err)
		}

		line := models.OrderLine{
			OrderID:      order.ID,
			UnitID:       unit.ID,
			ProductID:    product.ID,
			PricePerGram: quote.PricePerGram,
			MetalValue:   quote.MetalValue,
			Wage:         quote.Wage,
			Tax:          quote.Tax,
			LineTotal:    quote.Total,
			Gift:         true,
		}
		if err := tx.Create(&line).Error; err != nil {
			return fmt.Errorf("failed to create pos order line: %w", err)
		}
		order.Lines = []models.OrderLine{line}

		result = &PosQuote{Order: order, Unit: &unit, Quote: quote}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmPos finalizes a counter sale after the terminal reports success.
// The buyer paid at the terminal, so no customer wallet entry is made: the
// sale proceeds go to the dealer and the tax to the treasury, referenced by
// the terminal's payment id. Replaying a confirm on a paid order returns the
// original receipt.
func (s *PosService) ConfirmPos(dealerUserID, unitID uuid.UUID, paymentRef string) (*PosReceipt, error) {
	if paymentRef == "" {
		return nil, NewInvalidState("terminal payment reference is required")
	}

	var receipt *PosReceipt
	err := runInTx(s.db, func(tx *gorm.DB) error {
		unit, err := lockUnit(tx, unitID)
		if err != nil {
			return err
		}

		var line models.OrderLine
		err = tx.Joins("JOIN orders ON orders.id = order_lines.order_id").
			Where("order_lines.unit_id = ? AND orders.channel = ?", unitID, models.OrderChannelPos).
			Order("order_lines.created_at DESC").First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFound("pos order")
		}
		if err != nil {
			return fmt.Errorf("failed to load pos order line: %w", err)
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", line.OrderID).Error; err != nil {
			return fmt.Errorf("failed to load pos order: %w", err)
		}
		if order.CustomerID != dealerUserID {
			return NewInvalidOwnership("pos order belongs to another dealer")
		}
		if order.Status == models.OrderStatusPaid && unit.ClaimCode != nil {
			receipt = &PosReceipt{Order: &order, SerialCode: unit.SerialCode, ClaimCode: *unit.ClaimCode}
			return nil
		}
		if order.Status != models.OrderStatusPending {
			return NewInvalidState(fmt.Sprintf("pos order is %s", order.Status))
		}
		if unit.Status != models.UnitStatusReserved {
			return NewInvalidState("reservation expired, take a fresh quote")
		}

		reason := fmt.Sprintf("pos sale, terminal ref %s", paymentRef)
		sold, err := s.inventory.WithTx(tx).FinalizeSale(unit.ID, nil, true, reason, &dealerUserID)
		if err != nil {
			return err
		}

		ledger := s.ledger.WithTx(tx)
		lineRef := Reference{Type: "order_line", ID: line.ID.String()}
		if _, err := ledger.Deposit(dealerUserID, models.AssetCash, line.LineTotal-line.Tax, lineRef); err != nil {
			return err
		}
		if line.Tax > 0 {
			taxRef := Reference{Type: "order_line_tax", ID: line.ID.String()}
			if _, err := ledger.Deposit(s.treasuryID, models.AssetCash, line.Tax, taxRef); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":      models.OrderStatusPaid,
			"paid_at":     now,
			"payment_ref": paymentRef,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark pos order paid: %w", err)
		}
		order.Status = models.OrderStatusPaid
		order.PaidAt = &now
		order.PaymentRef = paymentRef

		code := ""
		if sold.ClaimCode != nil {
			code = *sold.ClaimCode
		}
		receipt = &PosReceipt{Order: &order, SerialCode: sold.SerialCode, ClaimCode: code}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil && receipt != nil {
		go s.notifications.NotifyPosSale(receipt.Order, receipt.SerialCode)
	}
	return receipt, nil
}

// dealerForLocation checks the user sells at this location.
func (s *PosService) dealerForLocation(dealerUserID, locationID uuid.UUID) (*models.DealerProfile, error) {
	var dealer models.DealerProfile
	err := s.db.Where("user_id = ? AND active = ?", dealerUserID, true).First(&dealer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewInvalidOwnership("user has no active dealer profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dealer profile: %w", err)
	}

	var count int64
	if err := s.db.Model(&models.Location{}).
		Where("id = ? AND dealer_id = ? AND active = ?", locationID, dealer.ID, true).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check location: %w", err)
	}
	if count == 0 {
		return nil, NewInvalidOwnership("location does not belong to this dealer")
	}
	return &dealer, nil
}
