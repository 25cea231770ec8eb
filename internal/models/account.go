// internal/models/account.go
package models

import (
	"github.com/google/uuid"
)

// Account is one owner's balance in one asset (cash, or milligrams of one
// metal). The row caches the latest snapshot for O(1) reads; the entry log is
// the source of truth.
//
// Invariants: Balance >= 0, LockedBalance >= 0, 0 <= CreditBalance <= Balance.
type Account struct {
	BaseModel
	OwnerID       uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_accounts_owner_asset,priority:1"`
	Asset         AssetCode `json:"asset" gorm:"type:varchar(20);not null;uniqueIndex:idx_accounts_owner_asset,priority:2"`
	Balance       int64     `json:"balance" gorm:"not null;default:0"`
	LockedBalance int64     `json:"locked_balance" gorm:"not null;default:0"`
	CreditBalance int64     `json:"credit_balance" gorm:"not null;default:0"`

	// Relationships
	Owner   User          `json:"-" gorm:"foreignKey:OwnerID"`
	Entries []LedgerEntry `json:"entries,omitempty" gorm:"foreignKey:AccountID"`
}

// Available is what the owner can spend right now.
func (a *Account) Available() int64 {
	return a.Balance - a.LockedBalance
}

// Withdrawable is the spendable portion excluding promotional credit, the
// only part that may ever leave the platform as cash.
func (a *Account) Withdrawable() int64 {
	return a.Available() - a.CreditBalance
}

// LedgerEntry is an immutable record of one balance movement. Entries are
// never updated or deleted; the account row is always derivable by summing
// the deltas.
type LedgerEntry struct {
	BaseModel
	AccountID      uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index:idx_ledger_account_created,priority:1"`
	Kind           EntryKind `json:"kind" gorm:"type:varchar(20);not null;index"`
	BalanceDelta   int64     `json:"balance_delta" gorm:"not null"`
	LockedDelta    int64     `json:"locked_delta" gorm:"not null"`
	CreditDelta    int64     `json:"credit_delta" gorm:"not null"`
	BalanceAfter   int64     `json:"balance_after" gorm:"not null"`
	LockedAfter    int64     `json:"locked_after" gorm:"not null"`
	CreditAfter    int64     `json:"credit_after" gorm:"not null"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"size:255;not null;uniqueIndex"`
	ReferenceType  string    `json:"reference_type,omitempty" gorm:"size:50;index:idx_ledger_reference,priority:1"`
	ReferenceID    string    `json:"reference_id,omitempty" gorm:"size:255;index:idx_ledger_reference,priority:2"`

	Account Account `json:"-" gorm:"foreignKey:AccountID"`
}

// BalanceSummary is the read-only snapshot handed to callers.
type BalanceSummary struct {
	Asset        AssetCode `json:"asset"`
	Balance      int64     `json:"balance"`
	Locked       int64     `json:"locked"`
	Available    int64     `json:"available"`
	Credit       int64     `json:"credit"`
	Withdrawable int64     `json:"withdrawable"`
}

func (a *Account) Summary() BalanceSummary {
	return BalanceSummary{
		Asset:        a.Asset,
		Balance:      a.Balance,
		Locked:       a.LockedBalance,
		Available:    a.Available(),
		Credit:       a.CreditBalance,
		Withdrawable: a.Withdrawable(),
	}
}
