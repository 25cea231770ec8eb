// internal/services/ledger_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// LedgerService is the double-entry balance engine. All money and metal
// movement goes through it; entries are append-only and every mutation is
// idempotent under its key.
type LedgerService struct {
	db   *gorm.DB
	inTx bool
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// WithTx returns a ledger bound to an already-open transaction so an
// orchestrator can move balances and inventory atomically.
func (s *LedgerService) WithTx(tx *gorm.DB) *LedgerService {
	return &LedgerService{db: tx, inTx: true}
}

func (s *LedgerService) run(fn func(tx *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db)
	}
	return runInTx(s.db, fn)
}

// Reference ties a ledger entry to the business event that caused it. When
// Key is empty the idempotency key is derived from (operation, type, id), so
// a retried caller lands on the same entry.
type Reference struct {
	Type string
	ID   string
	Key  string
}

func (r Reference) idempotencyKey(kind models.EntryKind) string {
	if r.Key != "" {
		return r.Key
	}
	return fmt.Sprintf("%s:%s:%s", kind, r.Type, r.ID)
}

// entryPlan is the pure outcome of one ledger operation against a snapshot
// of the account: the three deltas to apply, or a precondition failure.
// Keeping this pure keeps the laws (round-trip, equivalence) testable
// without a database.
type entryPlan struct {
	balanceDelta int64
	lockedDelta  int64
	creditDelta  int64
}

func planEntry(acct *models.Account, kind models.EntryKind, amount int64, consumeCredit bool) (entryPlan, error) {
	if amount <= 0 {
		return entryPlan{}, ErrInvalidAmount
	}

	switch kind {
	case models.EntryKindDeposit, models.EntryKindRefund:
		return entryPlan{balanceDelta: amount}, nil

	case models.EntryKindCredit:
		return entryPlan{balanceDelta: amount, creditDelta: amount}, nil

	case models.EntryKindHold:
		// Holds may never eat into non-withdrawable credit.
		if acct.Withdrawable() < amount {
			return entryPlan{}, NewInsufficientFunds(acct.Asset, amount, acct.Withdrawable())
		}
		return entryPlan{lockedDelta: amount}, nil

	case models.EntryKindRelease:
		if acct.LockedBalance < amount {
			return entryPlan{}, fmt.Errorf("release of %d exceeds locked balance %d: %w",
				amount, acct.LockedBalance, errLedgerInvariant)
		}
		return entryPlan{lockedDelta: -amount}, nil

	case models.EntryKindCommit:
		if acct.Balance < amount || acct.LockedBalance < amount {
			return entryPlan{}, fmt.Errorf("commit of %d exceeds balance %d or locked %d: %w",
				amount, acct.Balance, acct.LockedBalance, errLedgerInvariant)
		}
		return entryPlan{balanceDelta: -amount, lockedDelta: -amount}, nil

	case models.EntryKindWithdraw:
		if consumeCredit {
			if acct.Available() < amount {
				return entryPlan{}, NewInsufficientFunds(acct.Asset, amount, acct.Available())
			}
			// Regular funds are consumed before credit funds.
			creditUsed := amount - acct.Withdrawable()
			if creditUsed < 0 {
				creditUsed = 0
			}
			return entryPlan{balanceDelta: -amount, creditDelta: -creditUsed}, nil
		}
		if acct.Withdrawable() < amount {
			return entryPlan{}, NewInsufficientFunds(acct.Asset, amount, acct.Withdrawable())
		}
		return entryPlan{balanceDelta: -amount}, nil
	}

	return entryPlan{}, fmt.Errorf("unknown entry kind %q", kind)
}

// errLedgerInvariant marks programming errors, not user-facing conditions: a
// commit or release that would drive a field negative means the caller broke
// the hold protocol.
var errLedgerInvariant = errors.New("ledger invariant violation")

func (s *LedgerService) mutate(ownerID uuid.UUID, asset models.AssetCode, kind models.EntryKind, amount int64, consumeCredit bool, ref Reference) (*models.LedgerEntry, error) {
	key := ref.idempotencyKey(kind)

	var entry *models.LedgerEntry
	err := s.run(func(tx *gorm.DB) error {
		// Replay check: a retried call returns the original entry silently.
		var existing models.LedgerEntry
		err := tx.Where("idempotency_key = ?", key).First(&existing).Error
		if err == nil {
			entry = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("idempotency lookup: %w", err)
		}

		acct, err := lockAccount(tx, ownerID, asset)
		if err != nil {
			return err
		}

		plan, err := planEntry(acct, kind, amount, consumeCredit)
		if err != nil {
			return err
		}

		acct.Balance += plan.balanceDelta
		acct.LockedBalance += plan.lockedDelta
		acct.CreditBalance += plan.creditDelta

		e := &models.LedgerEntry{
			AccountID:      acct.ID,
			Kind:           kind,
			BalanceDelta:   plan.balanceDelta,
			LockedDelta:    plan.lockedDelta,
			CreditDelta:    plan.creditDelta,
			BalanceAfter:   acct.Balance,
			LockedAfter:    acct.LockedBalance,
			CreditAfter:    acct.CreditBalance,
			IdempotencyKey: key,
			ReferenceType:  ref.Type,
			ReferenceID:    ref.ID,
		}
		if err := tx.Create(e).Error; err != nil {
			return fmt.Errorf("failed to create ledger entry: %w", err)
		}

		if err := tx.Model(&models.Account{}).Where("id = ?", acct.ID).Updates(map[string]interface{}{
			"balance":        acct.Balance,
			"locked_balance": acct.LockedBalance,
			"credit_balance": acct.CreditBalance,
		}).Error; err != nil {
			return fmt.Errorf("failed to update account snapshot: %w", err)
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// lockAccount takes an exclusive row lock on the (owner, asset) account,
// creating it lazily on first movement.
func lockAccount(tx *gorm.DB, ownerID uuid.UUID, asset models.AssetCode) (*models.Account, error) {
	var acct models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND asset = ?", ownerID, asset).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.Account{OwnerID: ownerID, Asset: asset}
		if err := tx.Create(&acct).Error; err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		return &acct, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &acct, nil
}

// Deposit adds funds unconditionally.
func (s *LedgerService) Deposit(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindDeposit, amount, false, ref)
}

// DepositCredit adds funds that are spendable but never cashable out.
func (s *LedgerService) DepositCredit(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindCredit, amount, false, ref)
}

// Refund is a deposit variant kept distinct in the entry log.
func (s *LedgerService) Refund(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindRefund, amount, false, ref)
}

// Hold locks funds provisionally without removing them from the balance.
func (s *LedgerService) Hold(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindHold, amount, false, ref)
}

// Release cancels a hold; the funds return to available.
func (s *LedgerService) Release(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindRelease, amount, false, ref)
}

// Commit converts a hold into a permanent deduction.
func (s *LedgerService) Commit(ownerID uuid.UUID, asset models.AssetCode, amount int64, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindCommit, amount, false, ref)
}

// Withdraw deducts directly without a prior hold. With consumeCredit the
// deduction may draw down promotional credit after regular funds; without it
// the call is capped at the withdrawable portion (bank cash-outs must never
// pay out credit).
func (s *LedgerService) Withdraw(ownerID uuid.UUID, asset models.AssetCode, amount int64, consumeCredit bool, ref Reference) (*models.LedgerEntry, error) {
	return s.mutate(ownerID, asset, models.EntryKindWithdraw, amount, consumeCredit, ref)
}

// GetBalance returns a read-only snapshot. A missing account reads as zero.
func (s *LedgerService) GetBalance(ownerID uuid.UUID, asset models.AssetCode) (*models.BalanceSummary, error) {
	var acct models.Account
	err := s.db.Where("owner_id = ? AND asset = ?", ownerID, asset).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		zero := models.Account{OwnerID: ownerID, Asset: asset}
		summary := zero.Summary()
		return &summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	summary := acct.Summary()
	return &summary, nil
}

// GetEntries lists an owner's entry log for one asset, newest first.
func (s *LedgerService) GetEntries(ownerID uuid.UUID, asset models.AssetCode, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := s.db.
		Joins("JOIN accounts ON accounts.id = ledger_entries.account_id").
		Where("accounts.owner_id = ? AND accounts.asset = ?", ownerID, asset).
		Order("ledger_entries.created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}
	return entries, nil
}
