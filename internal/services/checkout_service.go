// internal/services/checkout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// CheckoutService sequences the multi-step purchase flow so inventory and
// ledger stay consistent. A pending order holds unit reservations and price
// snapshots but has made no ledger movement; money and ownership move
// together at the paid transition, inside one database transaction.
//
// Gateway calls are never made while a transaction is open: create-payment
// runs before any lock is taken and verify runs before the short finalize
// transaction opens.
type CheckoutService struct {
	db            *gorm.DB
	ledger        *LedgerService
	inventory     *InventoryService
	pricing       *PricingService
	settings      *SettingsService
	gateway       PaymentGateway
	notifications *NotificationService
	treasuryID    uuid.UUID
}

func NewCheckoutService(db *gorm.DB, ledger *LedgerService, inventory *InventoryService, pricing *PricingService, settings *SettingsService, gateway PaymentGateway, notifications *NotificationService, treasuryID uuid.UUID) *CheckoutService {
	return &CheckoutService{
		db:            db,
		ledger:        ledger,
		inventory:     inventory,
		pricing:       pricing,
		settings:      settings,
		gateway:       gateway,
		notifications: notifications,
		treasuryID:    treasuryID,
	}
}

type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=50"`
	Gift      bool      `json:"gift"`
}

type CheckoutRequest struct {
	Items        []CheckoutItem `json:"items" binding:"required,min=1,max=20,dive"`
	DeliveryInfo models.JSONB   `json:"delivery_info"`
}

// Checkout reserves stock for every line item and creates a pending order
// stamped with price snapshots taken at this instant. Prices are read before
// the transaction opens; a stale feed refuses the whole checkout.
func (s *CheckoutService) Checkout(ctx context.Context, customerID uuid.UUID, req *CheckoutRequest) (*models.Order, error) {
	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}

	// Load products and one fresh price point per metal up front, outside
	// the transaction.
	products := make(map[uuid.UUID]*models.Product, len(req.Items))
	points := make(map[models.Metal]*PricePoint)
	for _, item := range req.Items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
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
		inv := s.inventory.WithTx(tx)

		order = &models.Order{
			CustomerID:   customerID,
			Channel:      models.OrderChannelWeb,
			Status:       models.OrderStatusPending,
			DeliveryInfo: req.DeliveryInfo,
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		var total, totalTax int64
		for _, item := range req.Items {
			product := products[item.ProductID]
			quote := QuoteProduct(product, points[product.Metal], snap.TaxPercent)

			units, err := inv.ReserveUnits(item.ProductID, customerID, item.Quantity, snap.ReservationTTL, nil)
			if err != nil {
				return err
			}

			lines := make([]models.OrderLine, 0, len(units))
			for _, unit := range units {
				lines = append(lines, models.OrderLine{
					OrderID:      order.ID,
					UnitID:       unit.ID,
					ProductID:    product.ID,
					PricePerGram: quote.PricePerGram,
					MetalValue:   quote.MetalValue,
					Wage:         quote.Wage,
					Tax:          quote.Tax,
					LineTotal:    quote.Total,
					Gift:         item.Gift,
				})
				total += quote.Total
				totalTax += quote.Tax
			}
			if err := tx.Create(&lines).Error; err != nil {
				return fmt.Errorf("failed to create order lines: %w", err)
			}
			order.Lines = append(order.Lines, lines...)
		}

		order.TotalAmount = total
		order.TaxAmount = totalTax
		if err := tx.Model(order).Updates(map[string]interface{}{
			"total_amount": total,
			"tax_amount":   totalTax,
		}).Error; err != nil {
			return fmt.Errorf("failed to update order totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// PayFromWallet settles a pending order from the customer's cash balance.
// The hold/commit pair and the paid transition happen in one transaction, so
// other transactions never observe the funds gone while the order is still
// pending.
func (s *CheckoutService) PayFromWallet(orderID, customerID uuid.UUID) (*models.Order, error) {
	var paid *models.Order
	err := runInTx(s.db, func(tx *gorm.DB) error {
		order, err := s.lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != customerID {
			return NewInvalidOwnership("order belongs to another customer")
		}
		if order.Status == models.OrderStatusPaid {
			paid = order // idempotent replay
			return nil
		}
		if order.Status != models.OrderStatusPending {
			return NewInvalidState(fmt.Sprintf("order is %s", order.Status))
		}

		ledger := s.ledger.WithTx(tx)
		ref := Reference{Type: "order", ID: order.ID.String()}
		if _, err := ledger.Hold(customerID, models.AssetCash, order.TotalAmount, ref); err != nil {
			return err
		}
		if _, err := ledger.Commit(customerID, models.AssetCash, order.TotalAmount, ref); err != nil {
			return err
		}

		if err := s.finalizeOrder(tx, order, "wallet"); err != nil {
			return err
		}
		paid = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyPaid(paid)
	return paid, nil
}

// StartGatewayPayment opens a card payment for a pending order and records
// the provider reference. No locks are held across the gateway call.
func (s *CheckoutService) StartGatewayPayment(orderID, customerID uuid.UUID) (*GatewayIntent, error) {
	var order models.Order
	err := s.db.Where("id = ? AND customer_id = ?", orderID, customerID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.OrderStatusPending {
		return nil, NewInvalidState(fmt.Sprintf("order is %s", order.Status))
	}

	intent, err := s.gateway.CreateIntent(order.TotalAmount, "", map[string]string{
		"order_id": order.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("gateway rejected payment: %w", err)
	}

	if err := s.db.Model(&order).Update("payment_ref", intent.Ref).Error; err != nil {
		return nil, fmt.Errorf("failed to record payment reference: %w", err)
	}
	return intent, nil
}

// ConfirmGatewayPayment verifies the card payment with the provider and, on
// success, settles the order. Gateway callbacks are never trusted to be
// idempotent: order state is re-checked under lock and a replay on a paid
// order returns the original result silently.
func (s *CheckoutService) ConfirmGatewayPayment(orderID, customerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.Where("id = ? AND customer_id = ?", orderID, customerID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status == models.OrderStatusPaid {
		return &order, nil
	}
	if order.Status != models.OrderStatusPending || order.PaymentRef == "" {
		return nil, NewInvalidState("order has no payment in flight")
	}

	// Verify with the provider before any lock is taken.
	confirmed, err := s.gateway.Verify(order.PaymentRef, order.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if !confirmed {
		return nil, NewInvalidState("payment not confirmed by gateway")
	}

	var paid *models.Order
	err = runInTx(s.db, func(tx *gorm.DB) error {
		locked, err := s.lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if locked.Status == models.OrderStatusPaid {
			paid = locked
			return nil
		}
		if locked.Status != models.OrderStatusPending {
			return NewInvalidState(fmt.Sprintf("order is %s", locked.Status))
		}

		// Gateway funds pass through the buyer's cash account so the entry
		// log shows where the money came from.
		ledger := s.ledger.WithTx(tx)
		payRef := Reference{Type: "gateway_payment", ID: locked.PaymentRef}
		if _, err := ledger.Deposit(customerID, models.AssetCash, locked.TotalAmount, payRef); err != nil {
			return err
		}
		orderRef := Reference{Type: "order", ID: locked.ID.String()}
		if _, err := ledger.Withdraw(customerID, models.AssetCash, locked.TotalAmount, false, orderRef); err != nil {
			return err
		}

		if err := s.finalizeOrder(tx, locked, "gateway"); err != nil {
			return err
		}
		paid = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyPaid(paid)
	return paid, nil
}

// CancelOrder releases a pending order's reservations. If a gateway capture
// already landed for the order, a compensating refund is deposited to the
// buyer's wallet before the order flips to cancelled. Cancelling an
// already-cancelled order is a no-op.
func (s *CheckoutService) CancelOrder(orderID uuid.UUID, reason string) (*models.Order, error) {
	// Check for captured gateway money before opening the transaction.
	var probe models.Order
	err := s.db.Where("id = ?", orderID).First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	captured := false
	if probe.Status == models.OrderStatusPending && probe.PaymentRef != "" {
		captured, err = s.gateway.Verify(probe.PaymentRef, probe.TotalAmount)
		if err != nil {
			logrus.WithError(err).WithField("order_id", orderID).
				Warn("Gateway unreachable during cancel, assuming no capture")
		}
	}

	var cancelled *models.Order
	err = runInTx(s.db, func(tx *gorm.DB) error {
		order, err := s.lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			cancelled = order
			return nil
		}
		if order.Status != models.OrderStatusPending {
			return NewInvalidState("paid orders cannot be cancelled")
		}

		if captured {
			ref := Reference{Type: "gateway_payment", ID: order.PaymentRef}
			if _, err := s.ledger.WithTx(tx).Refund(order.CustomerID, models.AssetCash, order.TotalAmount, ref); err != nil {
				return err
			}
		}

		unitIDs := make([]uuid.UUID, 0, len(order.Lines))
		for _, line := range order.Lines {
			unitIDs = append(unitIDs, line.UnitID)
		}
		if err := s.inventory.WithTx(tx).ReleaseUnits(unitIDs); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":        models.OrderStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": reason,
		}).Error; err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		order.Status = models.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = reason
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelExpired cancels pending orders older than the reservation window.
// Called by the reaper; a checkout that reaches paid first wins the race
// because the order row lock serializes the two.
func (s *CheckoutService) CancelExpired(now time.Time) (int, error) {
	snap, err := s.settings.Snapshot()
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-snap.ReservationTTL)

	var ids []uuid.UUID
	if err := s.db.Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to scan expired orders: %w", err)
	}

	cancelledCount := 0
	for _, id := range ids {
		if _, err := s.CancelOrder(id, "reservation window expired"); err != nil {
			logrus.WithError(err).WithField("order_id", id).Warn("Failed to cancel expired order")
			continue
		}
		cancelledCount++
	}
	return cancelledCount, nil
}

// GetOrder loads one order with its lines for the owning customer.
func (s *CheckoutService) GetOrder(orderID, customerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Lines").Preload("Lines.Product").Preload("Lines.Unit").
		Where("id = ? AND customer_id = ?", orderID, customerID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// ListOrders pages through a customer's orders, newest first.
func (s *CheckoutService) ListOrders(customerID uuid.UUID, status *models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{}).Where("customer_id = ?", customerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	offset := (page - 1) * limit
	if err := query.Preload("Lines").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

// finalizeOrder flips every reserved unit to sold, deposits proceeds to the
// dealer owning each unit's custody location and tax to the treasury, and
// marks the order paid. Runs inside the caller's transaction after the buyer
// side of the money movement already succeeded.
func (s *CheckoutService) finalizeOrder(tx *gorm.DB, order *models.Order, via string) error {
	inv := s.inventory.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	for _, line := range order.Lines {
		unit, err := lockUnit(tx, line.UnitID)
		if err != nil {
			return err
		}
		if unit.Status != models.UnitStatusReserved || unit.Reservation.HolderID == nil ||
			*unit.Reservation.HolderID != order.CustomerID {
			return NewInvalidState(fmt.Sprintf("unit %s is no longer reserved for this order", unit.SerialCode))
		}

		owner := &order.CustomerID
		if line.Gift {
			owner = nil
		}
		reason := fmt.Sprintf("order %s paid via %s", order.ID, via)
		if _, err := inv.FinalizeSale(unit.ID, owner, line.Gift, reason, &order.CustomerID); err != nil {
			return err
		}

		dealerID, err := dealerUserForLocation(tx, unit.LocationID)
		if err != nil {
			return err
		}
		lineRef := Reference{Type: "order_line", ID: line.ID.String()}
		proceeds := line.LineTotal - line.Tax
		if _, err := ledger.Deposit(dealerID, models.AssetCash, proceeds, lineRef); err != nil {
			return err
		}
		if line.Tax > 0 {
			taxRef := Reference{Type: "order_line_tax", ID: line.ID.String()}
			if _, err := ledger.Deposit(s.treasuryID, models.AssetCash, line.Tax, taxRef); err != nil {
				return err
			}
		}
	}

	now := time.Now()
	if err := tx.Model(order).Updates(map[string]interface{}{
		"status":  models.OrderStatusPaid,
		"paid_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	order.Status = models.OrderStatusPaid
	order.PaidAt = &now
	return nil
}

func (s *CheckoutService) lockOrder(tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if err := tx.Where("order_id = ?", orderID).Find(&order.Lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	return &order, nil
}

func (s *CheckoutService) notifyPaid(order *models.Order) {
	if s.notifications == nil || order == nil || order.Status != models.OrderStatusPaid {
		return
	}
	go s.notifications.NotifyOrderPaid(order)
}

// dealerUserForLocation resolves the ledger owner who receives proceeds for
// a unit held at the given custody location.
func dealerUserForLocation(tx *gorm.DB, locationID *uuid.UUID) (uuid.UUID, error) {
	if locationID == nil {
		return uuid.Nil, NewInvalidState("unit has no custody location")
	}
	var location models.Location
	if err := tx.Preload("Dealer").First(&location, "id = ?", *locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, NewNotFound("location")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve custody location: %w", err)
	}
	return location.Dealer.UserID, nil
}
