package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

func TestInventoryService_ReserveUnitsShortfall(t *testing.T) {
	gdb, mock := newMockGorm(t)
	svc := NewInventoryService(gdb)

	productID := uuid.New()
	holderID := uuid.New()

	// Three requested, one sellable unit in stock. The transaction rolls
	// back without touching the row that was found.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "units" WHERE product_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "serial_code", "product_id", "status"}).
			AddRow(uuid.New().String(), "AU-001-0001", productID.String(), "assigned"))
	mock.ExpectRollback()

	_, err := svc.ReserveUnits(productID, holderID, 3, 10*time.Minute, nil)
	derr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientInventory, derr.Code)
	assert.True(t, derr.Retryable)
	assert.Equal(t, 3, derr.Details["requested"])
	assert.Equal(t, 1, derr.Details["available"])
	assert.Equal(t, 2, derr.Details["shortfall"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryService_ReserveUnitsRejectsNonPositiveQuantity(t *testing.T) {
	gdb, _ := newMockGorm(t)
	svc := NewInventoryService(gdb)

	_, err := svc.ReserveUnits(uuid.New(), uuid.New(), 0, 10*time.Minute, nil)
	assert.Error(t, err)
}

func TestInventoryService_AdminOverrideRecordsPreviousOwner(t *testing.T) {
	gdb, mock := newMockGorm(t)
	svc := NewInventoryService(gdb)

	unitID := uuid.New()
	prevOwner := uuid.New()
	adminID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "units" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "serial_code", "product_id", "status", "owner_id"}).
			AddRow(unitID.String(), "AU-001-0001", uuid.New().String(), "sold", prevOwner.String()))
	mock.ExpectExec(`UPDATE "units" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Overriding sold -> assigned clears the owner; the event row must keep
	// the owner the unit had before the write, not the cleared value.
	mock.ExpectQuery(`INSERT INTO "ownership_events"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), nil, unitID, prevOwner, nil, sqlmock.AnyArg(), adminID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))
	mock.ExpectCommit()

	unit, err := svc.AdminOverrideStatus(unitID, models.UnitStatusAssigned, "mis-scanned at counter", adminID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusAssigned, unit.Status)
	assert.Nil(t, unit.OwnerID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
