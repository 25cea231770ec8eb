package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []UnitStatus{UnitStatusRaw, UnitStatusAssigned, UnitStatusReserved, UnitStatusSold}

	legal := map[UnitStatus][]UnitStatus{
		UnitStatusRaw:      {UnitStatusAssigned},
		UnitStatusAssigned: {UnitStatusReserved, UnitStatusSold},
		UnitStatusReserved: {UnitStatusAssigned, UnitStatusSold},
		UnitStatusSold:     {UnitStatusSold},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if to == allowed {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransition(UnitStatus("bogus"), UnitStatusSold))
}

func TestUnit_ReserveAndRelease(t *testing.T) {
	holder := uuid.New()
	until := time.Now().Add(10 * time.Minute)

	unit := Unit{Status: UnitStatusAssigned}
	assert.True(t, unit.Sellable())

	unit.Reserve(holder, until)
	assert.Equal(t, UnitStatusReserved, unit.Status)
	assert.True(t, unit.Reservation.Active())
	assert.False(t, unit.Sellable())

	unit.ReleaseReservation()
	assert.Equal(t, UnitStatusAssigned, unit.Status)
	assert.False(t, unit.Reservation.Active())
	assert.True(t, unit.Sellable())
}

func TestUnit_ReleaseReservationIsIdempotent(t *testing.T) {
	unit := Unit{Status: UnitStatusAssigned}

	unit.ReleaseReservation()
	unit.ReleaseReservation()

	assert.Equal(t, UnitStatusAssigned, unit.Status)
	assert.False(t, unit.Reservation.Active())
}

func TestUnit_MarkSold(t *testing.T) {
	holder := uuid.New()
	owner := uuid.New()

	unit := Unit{Status: UnitStatusAssigned}
	unit.Reserve(holder, time.Now().Add(time.Minute))

	unit.MarkSold(&owner)
	assert.Equal(t, UnitStatusSold, unit.Status)
	assert.Equal(t, &owner, unit.OwnerID)
	assert.False(t, unit.Reservation.Active())
	assert.False(t, unit.Sellable())
}

func TestUnit_MarkSoldWithoutOwner(t *testing.T) {
	unit := Unit{Status: UnitStatusReserved}

	unit.MarkSold(nil)
	assert.Equal(t, UnitStatusSold, unit.Status)
	assert.Nil(t, unit.OwnerID)
}

func TestReservation_ExpiredAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)
	holder := uuid.New()

	assert.False(t, Reservation{}.ExpiredAt(now))
	assert.True(t, Reservation{HolderID: &holder, ReservedUntil: &past}.ExpiredAt(now))
	assert.False(t, Reservation{HolderID: &holder, ReservedUntil: &future}.ExpiredAt(now))
}

func TestAccount_WithdrawableExcludesCredit(t *testing.T) {
	acct := Account{Balance: 1_000_000, LockedBalance: 100_000, CreditBalance: 300_000}

	assert.Equal(t, int64(900_000), acct.Available())
	assert.Equal(t, int64(600_000), acct.Withdrawable())

	summary := acct.Summary()
	assert.Equal(t, acct.Available(), summary.Available)
	assert.Equal(t, acct.Withdrawable(), summary.Withdrawable)
}

func TestMetal_Asset(t *testing.T) {
	assert.Equal(t, AssetGoldMg, MetalGold.Asset())
	assert.Equal(t, AssetSilverMg, MetalSilver.Asset())
	assert.Equal(t, AssetPlatinumMg, MetalPlatinum.Asset())
}

func TestProduct_WeightGrams(t *testing.T) {
	assert.Equal(t, int64(4), (&Product{WeightMg: 4999}).WeightGrams())
	assert.Equal(t, int64(5), (&Product{WeightMg: 5000}).WeightGrams())
}
