// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// AdminService covers back-office operations: user moderation, capability
// grants, promotional credit and the audit trail.
type AdminService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewAdminService(db *gorm.DB, ledger *LedgerService) *AdminService {
	return &AdminService{db: db, ledger: ledger}
}

type GrantDealerRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	DisplayName string    `json:"display_name" binding:"required,max=100"`
}

type GrantCreditRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Amount int64     `json:"amount" binding:"required,min=1"`
	Reason string    `json:"reason" binding:"required"`
}

// ListUsers pages users, optionally filtered by status or search term.
func (s *AdminService) ListUsers(status *models.UserStatus, search string, page, limit int) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	offset := (page - 1) * limit
	if err := query.Preload("Dealer").Preload("Admin").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, total, nil
}

// SetUserStatus suspends, bans or reactivates an account.
func (s *AdminService) SetUserStatus(userID uuid.UUID, status models.UserStatus, adminID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.db.Model(&user).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	user.Status = status

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
		"admin":   adminID,
	}).Info("User status changed")
	return &user, nil
}

// GrantDealer creates a dealer capability record for a user. Granting twice
// fails on the unique index over user_id.
func (s *AdminService) GrantDealer(req *GrantDealerRequest, adminID uuid.UUID) (*models.DealerProfile, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", req.UserID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if count == 0 {
		return nil, NewNotFound("user")
	}

	dealer := &models.DealerProfile{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Active:      true,
	}
	if err := s.db.Create(dealer).Error; err != nil {
		return nil, fmt.Errorf("failed to create dealer profile: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"admin":   adminID,
	}).Info("Dealer capability granted")
	return dealer, nil
}

// RevokeDealer deactivates a dealer profile. Units at their locations stay
// where they are; only the capability to sell goes away.
func (s *AdminService) RevokeDealer(userID, adminID uuid.UUID) error {
	result := s.db.Model(&models.DealerProfile{}).
		Where("user_id = ? AND active = ?", userID, true).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke dealer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFound("dealer profile")
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "admin": adminID}).
		Info("Dealer capability revoked")
	return nil
}

// GrantAdmin creates an admin capability record.
func (s *AdminService) GrantAdmin(userID uuid.UUID, role string, grantedBy uuid.UUID) (*models.AdminGrant, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if count == 0 {
		return nil, NewNotFound("user")
	}

	grant := &models.AdminGrant{
		UserID:    userID,
		Role:      role,
		GrantedBy: &grantedBy,
	}
	if err := s.db.Create(grant).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin grant: %w", err)
	}
	return grant, nil
}

// GrantCredit deposits promotional credit to a user's cash account. The
// amount is spendable in checkout but can never leave through a withdrawal.
func (s *AdminService) GrantCredit(req *GrantCreditRequest, adminID uuid.UUID) (*models.LedgerEntry, error) {
	ref := Reference{
		Type: "promo_credit",
		ID:   uuid.NewString(),
	}
	entry, err := s.ledger.DepositCredit(req.UserID, models.AssetCash, req.Amount, ref)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"amount":  req.Amount,
		"reason":  req.Reason,
		"admin":   adminID,
	}).Info("Promotional credit granted")
	return entry, nil
}

// ListAuditLogs pages the request audit trail, newest first.
func (s *AdminService) ListAuditLogs(resourceType string, page, limit int) ([]models.AuditLog, int64, error) {
	query := s.db.Model(&models.AuditLog{})
	if resourceType != "" {
		query = query.Where("resource_type = ?", resourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	var logs []models.AuditLog
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return logs, total, nil
}
