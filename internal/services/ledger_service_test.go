package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func cashAccount(balance, locked, credit int64) *models.Account {
	return &models.Account{
		Asset:         models.AssetCash,
		Balance:       balance,
		LockedBalance: locked,
		CreditBalance: credit,
	}
}

func apply(acct *models.Account, plan entryPlan) *models.Account {
	next := *acct
	next.Balance += plan.balanceDelta
	next.LockedBalance += plan.lockedDelta
	next.CreditBalance += plan.creditDelta
	return &next
}

func TestPlanEntry_RejectsNonPositiveAmounts(t *testing.T) {
	acct := cashAccount(1000, 0, 0)

	for _, amount := range []int64{0, -1, -1000} {
		_, err := planEntry(acct, models.EntryKindDeposit, amount, false)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestPlanEntry_DepositAndRefundRaiseBalanceOnly(t *testing.T) {
	acct := cashAccount(500, 100, 50)

	for _, kind := range []models.EntryKind{models.EntryKindDeposit, models.EntryKindRefund} {
		plan, err := planEntry(acct, kind, 200, false)
		require.NoError(t, err)

		next := apply(acct, plan)
		assert.Equal(t, int64(700), next.Balance)
		assert.Equal(t, int64(100), next.LockedBalance)
		assert.Equal(t, int64(50), next.CreditBalance)
	}
}

func TestPlanEntry_CreditRaisesBalanceAndCreditTogether(t *testing.T) {
	acct := cashAccount(0, 0, 0)

	plan, err := planEntry(acct, models.EntryKindCredit, 300, false)
	require.NoError(t, err)

	next := apply(acct, plan)
	assert.Equal(t, int64(300), next.Balance)
	assert.Equal(t, int64(300), next.CreditBalance)
	assert.Equal(t, int64(0), next.Withdrawable())
	assert.Equal(t, int64(300), next.Available())
}

func TestPlanEntry_HoldNeverEatsCredit(t *testing.T) {
	// 1,000,000 on balance of which 300,000 is promotional credit: the
	// customer can spend the full million but only 700,000 may be held for
	// cash-out.
	acct := cashAccount(1_000_000, 0, 300_000)

	assert.Equal(t, int64(1_000_000), acct.Available())
	assert.Equal(t, int64(700_000), acct.Withdrawable())

	t.Run("hold within withdrawable", func(t *testing.T) {
		plan, err := planEntry(acct, models.EntryKindHold, 700_000, false)
		require.NoError(t, err)

		next := apply(acct, plan)
		assert.Equal(t, int64(1_000_000), next.Balance)
		assert.Equal(t, int64(700_000), next.LockedBalance)
	})

	t.Run("hold exceeding withdrawable", func(t *testing.T) {
		_, err := planEntry(acct, models.EntryKindHold, 700_001, false)

		derr, ok := AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInsufficientFunds, derr.Code)
		assert.Equal(t, int64(700_000), derr.Details["available"])
	})
}

func TestPlanEntry_HoldReleaseRoundTrip(t *testing.T) {
	acct := cashAccount(1000, 0, 0)

	holdPlan, err := planEntry(acct, models.EntryKindHold, 400, false)
	require.NoError(t, err)
	held := apply(acct, holdPlan)
	assert.Equal(t, int64(600), held.Available())

	releasePlan, err := planEntry(held, models.EntryKindRelease, 400, false)
	require.NoError(t, err)
	released := apply(held, releasePlan)

	assert.Equal(t, acct.Balance, released.Balance)
	assert.Equal(t, acct.LockedBalance, released.LockedBalance)
	assert.Equal(t, acct.CreditBalance, released.CreditBalance)
}

func TestPlanEntry_HoldCommitEqualsWithdraw(t *testing.T) {
	acct := cashAccount(1000, 0, 0)

	holdPlan, err := planEntry(acct, models.EntryKindHold, 400, false)
	require.NoError(t, err)
	held := apply(acct, holdPlan)

	commitPlan, err := planEntry(held, models.EntryKindCommit, 400, false)
	require.NoError(t, err)
	committed := apply(held, commitPlan)

	withdrawPlan, err := planEntry(acct, models.EntryKindWithdraw, 400, false)
	require.NoError(t, err)
	withdrawn := apply(acct, withdrawPlan)

	assert.Equal(t, withdrawn.Balance, committed.Balance)
	assert.Equal(t, withdrawn.LockedBalance, committed.LockedBalance)
	assert.Equal(t, withdrawn.CreditBalance, committed.CreditBalance)
}

func TestPlanEntry_ReleaseAndCommitGuardInvariants(t *testing.T) {
	acct := cashAccount(1000, 100, 0)

	_, err := planEntry(acct, models.EntryKindRelease, 200, false)
	assert.True(t, errors.Is(err, errLedgerInvariant))

	_, err = planEntry(acct, models.EntryKindCommit, 200, false)
	assert.True(t, errors.Is(err, errLedgerInvariant))
}

func TestPlanEntry_WithdrawWithoutCreditCapsAtWithdrawable(t *testing.T) {
	acct := cashAccount(1_000_000, 0, 300_000)

	_, err := planEntry(acct, models.EntryKindWithdraw, 700_001, false)
	derr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientFunds, derr.Code)

	plan, err := planEntry(acct, models.EntryKindWithdraw, 700_000, false)
	require.NoError(t, err)
	next := apply(acct, plan)
	assert.Equal(t, int64(300_000), next.Balance)
	assert.Equal(t, int64(300_000), next.CreditBalance)
}

func TestPlanEntry_ConsumingWithdrawSpendsRegularFundsFirst(t *testing.T) {
	acct := cashAccount(1_000_000, 0, 300_000)

	t.Run("within regular funds leaves credit untouched", func(t *testing.T) {
		plan, err := planEntry(acct, models.EntryKindWithdraw, 600_000, true)
		require.NoError(t, err)

		next := apply(acct, plan)
		assert.Equal(t, int64(400_000), next.Balance)
		assert.Equal(t, int64(300_000), next.CreditBalance)
	})

	t.Run("spills into credit only for the remainder", func(t *testing.T) {
		plan, err := planEntry(acct, models.EntryKindWithdraw, 800_000, true)
		require.NoError(t, err)

		next := apply(acct, plan)
		assert.Equal(t, int64(200_000), next.Balance)
		assert.Equal(t, int64(200_000), next.CreditBalance)
	})

	t.Run("cannot exceed available", func(t *testing.T) {
		_, err := planEntry(acct, models.EntryKindWithdraw, 1_000_001, true)
		derr, ok := AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInsufficientFunds, derr.Code)
	})
}

func TestPlanEntry_HoldRespectsExistingLocks(t *testing.T) {
	acct := cashAccount(1000, 800, 0)

	_, err := planEntry(acct, models.EntryKindHold, 300, false)
	derr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientFunds, derr.Code)
}

func TestReference_IdempotencyKey(t *testing.T) {
	ref := Reference{Type: "order", ID: "abc"}

	assert.Equal(t, "hold:order:abc", ref.idempotencyKey(models.EntryKindHold))
	assert.Equal(t, "commit:order:abc", ref.idempotencyKey(models.EntryKindCommit))

	// Distinct kinds against the same reference never collide.
	assert.NotEqual(t,
		ref.idempotencyKey(models.EntryKindDeposit),
		ref.idempotencyKey(models.EntryKindWithdraw))

	explicit := Reference{Type: "order", ID: "abc", Key: "custom-key"}
	assert.Equal(t, "custom-key", explicit.idempotencyKey(models.EntryKindHold))
}

func TestLedgerService_ReplayReturnsOriginalEntry(t *testing.T) {
	gdb, mock := newMockGorm(t)
	svc := NewLedgerService(gdb)

	owner := uuid.New()
	entryID := uuid.New()
	accountID := uuid.New()

	// The only statements a replayed mutation may issue are the key lookup
	// and the surrounding transaction. No account lock, no insert, no
	// snapshot update.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ledger_entries" WHERE idempotency_key`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "kind", "balance_delta", "locked_delta", "credit_delta",
			"balance_after", "locked_after", "credit_after",
			"idempotency_key", "reference_type", "reference_id",
		}).AddRow(
			entryID.String(), accountID.String(), "deposit", int64(500), int64(0), int64(0),
			int64(500), int64(0), int64(0),
			"deposit:order:ord-1", "order", "ord-1",
		))
	mock.ExpectCommit()

	entry, err := svc.Deposit(owner, models.AssetCash, 500, Reference{Type: "order", ID: "ord-1"})
	require.NoError(t, err)
	assert.Equal(t, entryID, entry.ID)
	assert.Equal(t, models.EntryKindDeposit, entry.Kind)
	assert.Equal(t, int64(500), entry.BalanceDelta)
	assert.Equal(t, int64(500), entry.BalanceAfter)
	assert.Equal(t, "deposit:order:ord-1", entry.IdempotencyKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}
