// internal/services/withdrawal_service.go
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

// WithdrawalService runs the payout lifecycle: the amount is held when the
// request is created, committed when an admin approves and released when an
// admin rejects. Promotional credit can never leave through this path
// because Hold is capped at the withdrawable balance.
type WithdrawalService struct {
	db            *gorm.DB
	ledger        *LedgerService
	settings      *SettingsService
	notifications *NotificationService
}

func NewWithdrawalService(db *gorm.DB, ledger *LedgerService, settings *SettingsService, notifications *NotificationService) *WithdrawalService {
	return &WithdrawalService{
		db:            db,
		ledger:        ledger,
		settings:      settings,
		notifications: notifications,
	}
}

type CreateWithdrawalRequest struct {
	Amount      int64        `json:"amount" binding:"required,min=1"`
	Destination models.JSONB `json:"destination" binding:"required"`
}

// Create places a hold for the requested amount and records the request. A
// hold that would exceed the withdrawable balance fails the whole call with
// INSUFFICIENT_FUNDS.
func (s *WithdrawalService) Create(ownerID uuid.UUID, req *CreateWithdrawalRequest) (*models.WithdrawalRequest, error) {
	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	if req.Amount < snap.MinWithdrawal {
		return nil, NewInvalidState(fmt.Sprintf("minimum withdrawal is %d", snap.MinWithdrawal))
	}

	var request *models.WithdrawalRequest
	err = runInTx(s.db, func(tx *gorm.DB) error {
		request = &models.WithdrawalRequest{
			OwnerID:     ownerID,
			Amount:      req.Amount,
			Destination: req.Destination,
			Status:      models.WithdrawalStatusPending,
		}
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal request: %w", err)
		}

		ref := Reference{Type: "withdrawal", ID: request.ID.String()}
		if _, err := s.ledger.WithTx(tx).Hold(ownerID, models.AssetCash, req.Amount, ref); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Approve commits the held amount out of the owner's balance and marks the
// request approved. The actual bank transfer happens out of band against the
// recorded destination.
func (s *WithdrawalService) Approve(requestID, adminID uuid.UUID, note string) (*models.WithdrawalRequest, error) {
	return s.decide(requestID, adminID, note, models.WithdrawalStatusApproved)
}

// Reject releases the hold back to the available balance.
func (s *WithdrawalService) Reject(requestID, adminID uuid.UUID, note string) (*models.WithdrawalRequest, error) {
	return s.decide(requestID, adminID, note, models.WithdrawalStatusRejected)
}

func (s *WithdrawalService) decide(requestID, adminID uuid.UUID, note string, decision models.WithdrawalStatus) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	err := runInTx(s.db, func(tx *gorm.DB) error {
		var req models.WithdrawalRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", requestID).First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFound("withdrawal request")
		}
		if err != nil {
			return fmt.Errorf("failed to lock withdrawal request: %w", err)
		}
		if req.Status == decision {
			request = &req // idempotent replay
			return nil
		}
		if req.Status != models.WithdrawalStatusPending {
			return NewInvalidState(fmt.Sprintf("withdrawal request is %s", req.Status))
		}

		ledger := s.ledger.WithTx(tx)
		ref := Reference{Type: "withdrawal", ID: req.ID.String()}
		if decision == models.WithdrawalStatusApproved {
			if _, err := ledger.Commit(req.OwnerID, models.AssetCash, req.Amount, ref); err != nil {
				return err
			}
		} else {
			if _, err := ledger.Release(req.OwnerID, models.AssetCash, req.Amount, ref); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&req).Updates(map[string]interface{}{
			"status":     decision,
			"decided_by": adminID,
			"decided_at": now,
			"note":       note,
		}).Error; err != nil {
			return fmt.Errorf("failed to update withdrawal request: %w", err)
		}
		req.Status = decision
		req.DecidedBy = &adminID
		req.DecidedAt = &now
		req.Note = note
		request = &req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		go s.notifications.NotifyWithdrawalDecision(request)
	}
	return request, nil
}

// ListForOwner pages one owner's requests, newest first.
func (s *WithdrawalService) ListForOwner(ownerID uuid.UUID, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	return s.list(s.db.Model(&models.WithdrawalRequest{}).Where("owner_id = ?", ownerID), page, limit)
}

// ListPending pages all undecided requests for the admin queue, oldest
// first so decisions are fair.
func (s *WithdrawalService) ListPending(page, limit int) ([]models.WithdrawalRequest, int64, error) {
	query := s.db.Model(&models.WithdrawalRequest{}).
		Where("status = ?", models.WithdrawalStatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}
	var requests []models.WithdrawalRequest
	offset := (page - 1) * limit
	if err := query.Order("created_at ASC").Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch withdrawal requests: %w", err)
	}
	return requests, total, nil
}

func (s *WithdrawalService) list(query *gorm.DB, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}
	var requests []models.WithdrawalRequest
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch withdrawal requests: %w", err)
	}
	return requests, total, nil
}
