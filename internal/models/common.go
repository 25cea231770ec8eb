// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums

// Metal identifies a traded precious metal. Metal quantities are always
// integer milligrams; prices are integer minor currency units per gram.
type Metal string

const (
	MetalGold     Metal = "gold"
	MetalSilver   Metal = "silver"
	MetalPlatinum Metal = "platinum"
)

func (m Metal) Valid() bool {
	switch m {
	case MetalGold, MetalSilver, MetalPlatinum:
		return true
	}
	return false
}

// AssetCode names a balance sub-account: cash, or one milligram-denominated
// sub-account per metal.
type AssetCode string

const (
	AssetCash       AssetCode = "CASH"
	AssetGoldMg     AssetCode = "GOLD_MG"
	AssetSilverMg   AssetCode = "SILVER_MG"
	AssetPlatinumMg AssetCode = "PLATINUM_MG"
)

// Asset returns the milligram sub-account code for a metal.
func (m Metal) Asset() AssetCode {
	switch m {
	case MetalGold:
		return AssetGoldMg
	case MetalSilver:
		return AssetSilverMg
	case MetalPlatinum:
		return AssetPlatinumMg
	}
	return ""
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type EntryKind string

const (
	EntryKindDeposit  EntryKind = "deposit"
	EntryKindWithdraw EntryKind = "withdraw"
	EntryKindHold     EntryKind = "hold"
	EntryKindRelease  EntryKind = "release"
	EntryKindCommit   EntryKind = "commit"
	EntryKindRefund   EntryKind = "refund"
	EntryKindCredit   EntryKind = "credit"
)

type UnitStatus string

const (
	UnitStatusRaw      UnitStatus = "raw"
	UnitStatusAssigned UnitStatus = "assigned"
	UnitStatusReserved UnitStatus = "reserved"
	UnitStatusSold     UnitStatus = "sold"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderChannel string

const (
	OrderChannelWeb OrderChannel = "web"
	OrderChannelPos OrderChannel = "pos"
	OrderChannelB2B OrderChannel = "b2b"
)

type TopUpStatus string

const (
	TopUpStatusPending  TopUpStatus = "pending"
	TopUpStatusCredited TopUpStatus = "credited"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// PriceBasis records which price a buyback was valued at.
type PriceBasis string

const (
	PriceBasisOriginalSale PriceBasis = "original_sale"
	PriceBasisCurrent      PriceBasis = "current"
)
