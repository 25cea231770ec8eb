// internal/services/inventory_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

// InventoryService manages serialized physical units through the
// raw -> assigned -> reserved -> sold lifecycle, including time-boxed
// reservations.
type InventoryService struct {
	db   *gorm.DB
	inTx bool
}

func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// WithTx binds the allocator to an already-open transaction so reservations
// and ledger movement commit together.
func (s *InventoryService) WithTx(tx *gorm.DB) *InventoryService {
	return &InventoryService{db: tx, inTx: true}
}

func (s *InventoryService) run(fn func(tx *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db)
	}
	return runInTx(s.db, fn)
}

// ReserveUnits atomically selects up to quantity sellable units of a product
// and flips them to reserved until now+ttl. All-or-nothing: a shortfall
// rolls the whole call back and surfaces INSUFFICIENT_INVENTORY.
//
// Selection locks candidate rows FOR UPDATE SKIP LOCKED in ascending serial
// order: rows held by a concurrent checkout are excluded from the pool
// instead of blocking, so two checkouts can never pick the same unit.
// Callers must not depend on which physical units they receive.
func (s *InventoryService) ReserveUnits(productID, holderID uuid.UUID, quantity int, ttl time.Duration, locationID *uuid.UUID) ([]models.Unit, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reserve quantity must be positive")
	}

	var reserved []models.Unit
	err := s.run(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("product_id = ? AND status = ? AND owner_id IS NULL AND holder_id IS NULL",
				productID, models.UnitStatusAssigned)
		if locationID != nil {
			query = query.Where("location_id = ?", *locationID)
		}

		var units []models.Unit
		if err := query.Order("serial_code ASC").Limit(quantity).Find(&units).Error; err != nil {
			return fmt.Errorf("failed to select units: %w", err)
		}
		if len(units) < quantity {
			return NewInsufficientInventory(quantity, len(units))
		}

		until := time.Now().Add(ttl)
		ids := make([]uuid.UUID, 0, len(units))
		for i := range units {
			units[i].Reserve(holderID, until)
			ids = append(ids, units[i].ID)
		}

		if err := tx.Model(&models.Unit{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":         models.UnitStatusReserved,
			"holder_id":      holderID,
			"reserved_until": until,
		}).Error; err != nil {
			return fmt.Errorf("failed to reserve units: %w", err)
		}

		reserved = units
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// ReleaseUnits returns reserved units to assigned and clears their claim
// state. Idempotent: re-releasing an already-assigned unit is a no-op.
func (s *InventoryService) ReleaseUnits(unitIDs []uuid.UUID) error {
	if len(unitIDs) == 0 {
		return nil
	}
	return s.run(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Unit{}).
			Where("id IN ? AND status = ?", unitIDs, models.UnitStatusReserved).
			Updates(map[string]interface{}{
				"status":         models.UnitStatusAssigned,
				"holder_id":      nil,
				"reserved_until": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to release units: %w", err)
		}
		return nil
	})
}

// FinalizeSale moves a reserved (or, for walk-in sales, assigned) unit to
// sold. With markGift the owner stays unset and a claim code is minted
// instead, for unregistered transfer of custody. Emits one OwnershipEvent.
func (s *InventoryService) FinalizeSale(unitID uuid.UUID, newOwnerID *uuid.UUID, markGift bool, reason string, actorID *uuid.UUID) (*models.Unit, error) {
	var finalized *models.Unit
	err := s.run(func(tx *gorm.DB) error {
		unit, err := lockUnit(tx, unitID)
		if err != nil {
			return err
		}
		if !models.CanTransition(unit.Status, models.UnitStatusSold) || unit.OwnerID != nil {
			return NewInvalidState(fmt.Sprintf("unit %s cannot be sold from status %s", unit.SerialCode, unit.Status))
		}

		prevOwner := unit.OwnerID
		var claimCode *string
		owner := newOwnerID
		if markGift || newOwnerID == nil {
			code, err := utils.GenerateClaimCode()
			if err != nil {
				return fmt.Errorf("failed to mint claim code: %w", err)
			}
			claimCode = &code
			owner = nil
		}

		unit.MarkSold(owner)
		unit.ClaimCode = claimCode

		if err := saveUnit(tx, unit); err != nil {
			return err
		}
		if err := recordOwnershipEvent(tx, unit.ID, prevOwner, owner, reason, actorID); err != nil {
			return err
		}

		finalized = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// Claim registers ownership of a sold, ownerless unit against its claim
// code. Code mismatch or an already-set owner is INVALID_CLAIM.
func (s *InventoryService) Claim(serialCode, claimCode string, claimantID uuid.UUID) (*models.Unit, error) {
	var claimed *models.Unit
	err := s.run(func(tx *gorm.DB) error {
		var unit models.Unit
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("serial_code = ?", serialCode).First(&unit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFound("unit")
		}
		if err != nil {
			return fmt.Errorf("failed to lock unit: %w", err)
		}

		if unit.Status != models.UnitStatusSold || unit.OwnerID != nil {
			return NewInvalidClaim("unit is not claimable")
		}
		if unit.ClaimCode == nil || *unit.ClaimCode != claimCode {
			return NewInvalidClaim("claim code does not match")
		}

		unit.OwnerID = &claimantID
		unit.ClaimCode = nil

		if err := saveUnit(tx, &unit); err != nil {
			return err
		}
		if err := recordOwnershipEvent(tx, unit.ID, nil, &claimantID, "claimed by code", &claimantID); err != nil {
			return err
		}

		claimed = &unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// TransferOwnership reassigns a sold unit between owners (sold -> sold).
// When the recipient has no user record the transfer degrades to a gift: the
// owner is cleared and a fresh claim code is minted.
func (s *InventoryService) TransferOwnership(unitID, fromOwnerID uuid.UUID, toOwnerID *uuid.UUID, reason string) (*models.Unit, error) {
	var transferred *models.Unit
	err := s.run(func(tx *gorm.DB) error {
		unit, err := lockUnit(tx, unitID)
		if err != nil {
			return err
		}
		if unit.Status != models.UnitStatusSold {
			return NewInvalidState("only sold units can change owners")
		}
		if unit.OwnerID == nil || *unit.OwnerID != fromOwnerID {
			return NewInvalidOwnership("transfer not authorized by current owner")
		}

		newOwner := toOwnerID
		if toOwnerID != nil {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", *toOwnerID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to look up recipient: %w", err)
			}
			if count == 0 {
				newOwner = nil
			}
		}

		prevOwner := unit.OwnerID
		if newOwner == nil {
			code, err := utils.GenerateClaimCode()
			if err != nil {
				return fmt.Errorf("failed to mint claim code: %w", err)
			}
			unit.ClaimCode = &code
		}
		unit.OwnerID = newOwner

		if err := saveUnit(tx, unit); err != nil {
			return err
		}
		if err := recordOwnershipEvent(tx, unit.ID, prevOwner, newOwner, reason, &fromOwnerID); err != nil {
			return err
		}

		transferred = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transferred, nil
}

// SweepExpired releases every reservation whose deadline has passed. Rows
// locked by an in-flight finalize are skipped; the row lock decides the
// race, never both.
func (s *InventoryService) SweepExpired(now time.Time) (int, error) {
	var released int
	err := s.run(func(tx *gorm.DB) error {
		var units []models.Unit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND reserved_until < ?", models.UnitStatusReserved, now).
			Find(&units).Error; err != nil {
			return fmt.Errorf("failed to select expired reservations: %w", err)
		}
		if len(units) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(units))
		for _, u := range units {
			ids = append(ids, u.ID)
		}
		if err := tx.Model(&models.Unit{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":         models.UnitStatusAssigned,
			"holder_id":      nil,
			"reserved_until": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to release expired reservations: %w", err)
		}

		released = len(units)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// MintUnits registers newly minted bars under a product as raw stock. Serial
// codes come engraved from the mint; duplicates fail on the unique index.
func (s *InventoryService) MintUnits(productID uuid.UUID, serialCodes []string) ([]models.Unit, error) {
	if len(serialCodes) == 0 {
		return nil, fmt.Errorf("at least one serial code is required")
	}

	var minted []models.Unit
	err := s.run(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewNotFound("product")
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		units := make([]models.Unit, 0, len(serialCodes))
		for _, serial := range serialCodes {
			units = append(units, models.Unit{
				SerialCode: serial,
				ProductID:  productID,
				Status:     models.UnitStatusRaw,
			})
		}
		if err := tx.Create(&units).Error; err != nil {
			return fmt.Errorf("failed to mint units: %w", err)
		}

		minted = units
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// ActivateUnits moves raw units into sellable stock at a custody location.
func (s *InventoryService) ActivateUnits(unitIDs []uuid.UUID, locationID uuid.UUID) error {
	if len(unitIDs) == 0 {
		return nil
	}
	return s.run(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Location{}).Where("id = ? AND active = ?", locationID, true).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up location: %w", err)
		}
		if count == 0 {
			return NewNotFound("location")
		}

		result := tx.Model(&models.Unit{}).
			Where("id IN ? AND status = ?", unitIDs, models.UnitStatusRaw).
			Updates(map[string]interface{}{
				"status":      models.UnitStatusAssigned,
				"location_id": locationID,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to activate units: %w", result.Error)
		}
		if int(result.RowsAffected) != len(unitIDs) {
			return NewInvalidState("some units are not in raw status")
		}
		return nil
	})
}

// MoveUnits changes the custody location of assigned stock.
func (s *InventoryService) MoveUnits(unitIDs []uuid.UUID, locationID uuid.UUID) error {
	if len(unitIDs) == 0 {
		return nil
	}
	return s.run(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Unit{}).
			Where("id IN ? AND status = ?", unitIDs, models.UnitStatusAssigned).
			Update("location_id", locationID).Error; err != nil {
			return fmt.Errorf("failed to move units: %w", err)
		}
		return nil
	})
}

// AdminOverrideStatus forces a unit into a status outside the legal
// lifecycle edges. Always logged, both as an OwnershipEvent and in the
// application log.
func (s *InventoryService) AdminOverrideStatus(unitID uuid.UUID, to models.UnitStatus, reason string, adminID uuid.UUID) (*models.Unit, error) {
	var overridden *models.Unit
	err := s.run(func(tx *gorm.DB) error {
		unit, err := lockUnit(tx, unitID)
		if err != nil {
			return err
		}

		from := unit.Status
		prevOwner := unit.OwnerID
		unit.Status = to
		if to != models.UnitStatusReserved {
			unit.Reservation = models.Reservation{}
		}
		if to != models.UnitStatusSold {
			unit.OwnerID = nil
			unit.ClaimCode = nil
		}

		if err := saveUnit(tx, unit); err != nil {
			return err
		}
		msg := fmt.Sprintf("admin override %s -> %s: %s", from, to, reason)
		if err := recordOwnershipEvent(tx, unit.ID, prevOwner, unit.OwnerID, msg, &adminID); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"unit_id": unitID,
			"from":    from,
			"to":      to,
			"admin":   adminID,
			"reason":  reason,
		}).Warn("Unit status overridden")

		overridden = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return overridden, nil
}

// PurgeRawUnits bulk-deletes never-sold raw stock of one product, the only
// deletion the lifecycle permits.
func (s *InventoryService) PurgeRawUnits(productID uuid.UUID) (int64, error) {
	var purged int64
	err := s.run(func(tx *gorm.DB) error {
		result := tx.Where("product_id = ? AND status = ?", productID, models.UnitStatusRaw).
			Delete(&models.Unit{})
		if result.Error != nil {
			return fmt.Errorf("failed to purge raw units: %w", result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// GetUnitBySerial loads a unit with its product and provenance trail.
func (s *InventoryService) GetUnitBySerial(serialCode string) (*models.Unit, error) {
	var unit models.Unit
	err := s.db.Preload("Product").Preload("Location").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("serial_code = ?", serialCode).First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("unit")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	return &unit, nil
}

// GetOwnedUnits lists the bars currently owned by a user.
func (s *InventoryService) GetOwnedUnits(ownerID uuid.UUID) ([]models.Unit, error) {
	var units []models.Unit
	err := s.db.Preload("Product").
		Where("owner_id = ?", ownerID).
		Order("serial_code ASC").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch owned units: %w", err)
	}
	return units, nil
}

// AvailableCount reports sellable stock for a product, optionally at one
// location. Informational only: checkout re-checks under lock.
func (s *InventoryService) AvailableCount(productID uuid.UUID, locationID *uuid.UUID) (int64, error) {
	query := s.db.Model(&models.Unit{}).
		Where("product_id = ? AND status = ? AND owner_id IS NULL AND holder_id IS NULL",
			productID, models.UnitStatusAssigned)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count available units: %w", err)
	}
	return count, nil
}

// Helpers

func lockUnit(tx *gorm.DB, unitID uuid.UUID) (*models.Unit, error) {
	var unit models.Unit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", unitID).First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("unit")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock unit: %w", err)
	}
	return &unit, nil
}

func saveUnit(tx *gorm.DB, unit *models.Unit) error {
	if err := tx.Model(&models.Unit{}).Where("id = ?", unit.ID).Updates(map[string]interface{}{
		"status":         unit.Status,
		"owner_id":       unit.OwnerID,
		"holder_id":      unit.Reservation.HolderID,
		"reserved_until": unit.Reservation.ReservedUntil,
		"claim_code":     unit.ClaimCode,
		"location_id":    unit.LocationID,
	}).Error; err != nil {
		return fmt.Errorf("failed to update unit: %w", err)
	}
	return nil
}

func recordOwnershipEvent(tx *gorm.DB, unitID uuid.UUID, prevOwner, newOwner *uuid.UUID, reason string, actorID *uuid.UUID) error {
	event := &models.OwnershipEvent{
		UnitID:    unitID,
		PrevOwner: prevOwner,
		NewOwner:  newOwner,
		Reason:    reason,
		ActorID:   actorID,
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record ownership event: %w", err)
	}
	return nil
}
