// internal/services/settings_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// Settings keys. Stored per category/key in admin_settings with typed JSONB
// values so operators can tune them without a deploy.
const (
	SettingCategoryTrade  = "trade"
	SettingCategorySystem = "system"

	SettingTaxPercent        = "tax_percent"           // integer percent applied to metal value + wage
	SettingReservationTTL    = "reservation_ttl_s"     // seconds a checkout hold lives
	SettingPriceFreshness    = "price_freshness_s"     // max feed age for settlement pricing
	SettingBuybackEnabled    = "buyback_enabled"       // kill switch for the buyback flow
	SettingWageRefundPercent = "wage_refund_percent"   // share of original wage refunded on buyback
	SettingMinWithdrawal     = "min_withdrawal"        // minor units, floor for withdrawal requests
	SettingPosReservationTTL = "pos_reservation_ttl_s" // counter sales hold shorter
)

// SettingsSnapshot is the immutable view of tunables used by a single
// settlement flow. Load it once at the start of the flow so a concurrent
// admin edit cannot split one order across two tax rates.
type SettingsSnapshot struct {
	TaxPercent        int64
	ReservationTTL    time.Duration
	PosReservationTTL time.Duration
	PriceFreshness    time.Duration
	BuybackEnabled    bool
	WageRefundPercent int64
	MinWithdrawal     int64
}

// SettingsService reads and writes operator tunables.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Snapshot loads all trade tunables in one query, falling back to defaults
// for keys that were never set.
func (s *SettingsService) Snapshot() (*SettingsSnapshot, error) {
	var rows []models.AdminSettings
	if err := s.db.Where("category = ?", SettingCategoryTrade).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	snap := &SettingsSnapshot{
		TaxPercent:        9,
		ReservationTTL:    10 * time.Minute,
		PosReservationTTL: 3 * time.Minute,
		PriceFreshness:    5 * time.Minute,
		BuybackEnabled:    true,
		WageRefundPercent: 70,
		MinWithdrawal:     100000,
	}
	for _, row := range rows {
		switch row.Key {
		case SettingTaxPercent:
			if v, ok := settingInt(row); ok {
				snap.TaxPercent = v
			}
		case SettingReservationTTL:
			if v, ok := settingInt(row); ok {
				snap.ReservationTTL = time.Duration(v) * time.Second
			}
		case SettingPosReservationTTL:
			if v, ok := settingInt(row); ok {
				snap.PosReservationTTL = time.Duration(v) * time.Second
			}
		case SettingPriceFreshness:
			if v, ok := settingInt(row); ok {
				snap.PriceFreshness = time.Duration(v) * time.Second
			}
		case SettingBuybackEnabled:
			if v, ok := settingBool(row); ok {
				snap.BuybackEnabled = v
			}
		case SettingWageRefundPercent:
			if v, ok := settingInt(row); ok {
				snap.WageRefundPercent = v
			}
		case SettingMinWithdrawal:
			if v, ok := settingInt(row); ok {
				snap.MinWithdrawal = v
			}
		}
	}
	return snap, nil
}

// Get returns one setting row.
func (s *SettingsService) Get(category, key string) (*models.AdminSettings, error) {
	var row models.AdminSettings
	err := s.db.Where("category = ? AND key = ?", category, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("setting")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load setting: %w", err)
	}
	return &row, nil
}

// List returns every setting in a category.
func (s *SettingsService) List(category string) ([]models.AdminSettings, error) {
	var rows []models.AdminSettings
	if err := s.db.Where("category = ?", category).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return rows, nil
}

// Upsert creates or updates a setting and stamps the editing admin.
func (s *SettingsService) Upsert(category, key string, value models.JSONB, dataType, description string, updatedBy uuid.UUID) (*models.AdminSettings, error) {
	var row models.AdminSettings
	err := runInTx(s.db, func(tx *gorm.DB) error {
		err := tx.Where("category = ? AND key = ?", category, key).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.AdminSettings{
				Category:    category,
				Key:         key,
				Value:       value,
				DataType:    dataType,
				Description: description,
				UpdatedBy:   updatedBy,
			}
			return tx.Create(&row).Error
		}
		if err != nil {
			return fmt.Errorf("failed to load setting: %w", err)
		}
		return tx.Model(&row).Updates(map[string]interface{}{
			"value":      value,
			"data_type":  dataType,
			"updated_by": updatedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func settingInt(row models.AdminSettings) (int64, bool) {
	raw, ok := row.Value["value"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func settingBool(row models.AdminSettings) (bool, bool) {
	raw, ok := row.Value["value"]
	if !ok {
		return false, false
	}
	v, ok := raw.(bool)
	return v, ok
}
