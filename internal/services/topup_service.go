// internal/services/topup_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// TopUpService funds wallets through the card gateway. The ledger deposit is
// only written after the provider confirms the capture; a confirmed top-up
// replayed returns the original row silently.
type TopUpService struct {
	db      *gorm.DB
	ledger  *LedgerService
	gateway PaymentGateway
}

func NewTopUpService(db *gorm.DB, ledger *LedgerService, gateway PaymentGateway) *TopUpService {
	return &TopUpService{db: db, ledger: ledger, gateway: gateway}
}

type TopUpIntent struct {
	TopUp  *models.TopUp  `json:"topup"`
	Intent *GatewayIntent `json:"intent"`
}

// Start opens a gateway payment for the amount and records the pending
// top-up. The gateway call runs before any row is written.
func (s *TopUpService) Start(ownerID uuid.UUID, amount int64) (*TopUpIntent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	intent, err := s.gateway.CreateIntent(amount, "", map[string]string{
		"purpose": "wallet_topup",
		"user_id": ownerID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway payment: %w", err)
	}

	topup := &models.TopUp{
		OwnerID:    ownerID,
		Amount:     amount,
		PaymentRef: intent.Ref,
		Status:     models.TopUpStatusPending,
	}
	if err := s.db.Create(topup).Error; err != nil {
		return nil, fmt.Errorf("failed to record topup: %w", err)
	}

	return &TopUpIntent{TopUp: topup, Intent: intent}, nil
}

// Confirm verifies the capture with the provider and credits the wallet. The
// gateway round-trip happens before the transaction opens; state is
// re-checked under lock afterwards.
func (s *TopUpService) Confirm(topupID, ownerID uuid.UUID) (*models.TopUp, error) {
	var probe models.TopUp
	err := s.db.Where("id = ? AND owner_id = ?", topupID, ownerID).First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("topup")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load topup: %w", err)
	}
	if probe.Status == models.TopUpStatusCredited {
		return &probe, nil
	}

	ok, err := s.gateway.Verify(probe.PaymentRef, probe.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if !ok {
		return nil, NewInvalidState("payment not captured")
	}

	var confirmed *models.TopUp
	err = runInTx(s.db, func(tx *gorm.DB) error {
		var topup models.TopUp
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", topupID).First(&topup).Error; err != nil {
			return fmt.Errorf("failed to lock topup: %w", err)
		}
		if topup.Status == models.TopUpStatusCredited {
			confirmed = &topup
			return nil
		}

		ref := Reference{Type: "gateway_payment", ID: topup.PaymentRef}
		if _, err := s.ledger.WithTx(tx).Deposit(topup.OwnerID, models.AssetCash, topup.Amount, ref); err != nil {
			return err
		}

		now := time.Now()
		topup.Status = models.TopUpStatusCredited
		topup.CreditedAt = &now
		if err := tx.Model(&topup).Updates(map[string]interface{}{
			"status":      topup.Status,
			"credited_at": topup.CreditedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark topup credited: %w", err)
		}

		confirmed = &topup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// ListForOwner pages an owner's top-ups, newest first.
func (s *TopUpService) ListForOwner(ownerID uuid.UUID, page, limit int) ([]models.TopUp, int64, error) {
	query := s.db.Model(&models.TopUp{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count topups: %w", err)
	}

	var topups []models.TopUp
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&topups).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch topups: %w", err)
	}
	return topups, total, nil
}
