// internal/models/unit.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a bar SKU: it defines metal, nominal weight and purity for the
// serialized units minted against it. Wage is the fixed minting/labor charge
// added on top of metal value, in minor currency units.
type Product struct {
	BaseModel
	Name     string         `json:"name" gorm:"size:255;not null"`
	Metal    Metal          `json:"metal" gorm:"type:varchar(20);not null;index:idx_products_metal_active,priority:1"`
	WeightMg int64          `json:"weight_mg" gorm:"not null"`
	Purity   int            `json:"purity" gorm:"not null"` // per-mille, e.g. 999
	Wage     int64          `json:"wage" gorm:"not null;default:0"`
	Images   pq.StringArray `json:"images" gorm:"type:text[]"`
	Active   bool           `json:"active" gorm:"default:true;index:idx_products_metal_active,priority:2"`

	Units []Unit `json:"units,omitempty" gorm:"foreignKey:ProductID"`
}

// WeightGrams floors to whole grams; pricing math works on milligrams and
// never uses this for money.
func (p *Product) WeightGrams() int64 {
	return p.WeightMg / 1000
}

// Reservation is the transient claim state embedded on a Unit row. Folding it
// into the unit keeps "reserve exactly N available units" a single
// row-locking query instead of a two-table join. Mutate only through the Unit
// setters so holder-set <=> status=reserved cannot drift.
type Reservation struct {
	HolderID      *uuid.UUID `json:"holder_id" gorm:"type:uuid;index:idx_units_holder_expiry,priority:1"`
	ReservedUntil *time.Time `json:"reserved_until" gorm:"index:idx_units_holder_expiry,priority:2"`
}

func (r Reservation) Active() bool {
	return r.HolderID != nil
}

func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.ReservedUntil != nil && r.ReservedUntil.Before(now)
}

// Unit is one physical, serially numbered bar. Non-fungible: checkout
// reserves and sells specific units, never counts.
//
// Invariants: ReservedUntil set <=> Status == reserved; OwnerID set =>
// Status == sold.
type Unit struct {
	BaseModel
	SerialCode  string      `json:"serial_code" gorm:"size:32;not null;uniqueIndex"`
	ProductID   uuid.UUID   `json:"product_id" gorm:"type:uuid;not null;index:idx_units_product_status,priority:1"`
	Status      UnitStatus  `json:"status" gorm:"type:varchar(20);not null;default:'raw';index:idx_units_product_status,priority:2"`
	LocationID  *uuid.UUID  `json:"location_id" gorm:"type:uuid;index"`
	OwnerID     *uuid.UUID  `json:"owner_id" gorm:"type:uuid;index"`
	Reservation Reservation `json:"reservation" gorm:"embedded"`
	ClaimCode   *string     `json:"-" gorm:"size:64;index"`

	Product  Product          `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Location *Location        `json:"location,omitempty" gorm:"foreignKey:LocationID"`
	Events   []OwnershipEvent `json:"events,omitempty" gorm:"foreignKey:UnitID"`
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// raw -> assigned -> reserved -> sold, plus reserved -> assigned
// (release/expiry) and sold -> sold (ownership transfer). Everything else
// requires an administrative override, which bypasses this table and is
// logged.
func CanTransition(from, to UnitStatus) bool {
	switch from {
	case UnitStatusRaw:
		return to == UnitStatusAssigned
	case UnitStatusAssigned:
		return to == UnitStatusReserved || to == UnitStatusSold
	case UnitStatusReserved:
		return to == UnitStatusAssigned || to == UnitStatusSold
	case UnitStatusSold:
		return to == UnitStatusSold
	}
	return false
}

// Reserve flips an assigned unit to reserved for holder until the deadline.
func (u *Unit) Reserve(holderID uuid.UUID, until time.Time) {
	u.Status = UnitStatusReserved
	u.Reservation = Reservation{HolderID: &holderID, ReservedUntil: &until}
}

// ReleaseReservation returns a reserved unit to assigned and clears the
// claim state. Calling it on an already-assigned unit is a no-op.
func (u *Unit) ReleaseReservation() {
	if u.Status == UnitStatusReserved {
		u.Status = UnitStatusAssigned
	}
	u.Reservation = Reservation{}
}

// MarkSold finalizes the unit. A nil owner means an unregistered custody
// transfer: the caller must mint a claim code.
func (u *Unit) MarkSold(ownerID *uuid.UUID) {
	u.Status = UnitStatusSold
	u.Reservation = Reservation{}
	u.OwnerID = ownerID
}

// Sellable reports whether the unit can enter a reservation: assigned stock
// with no owner and no live claim.
func (u *Unit) Sellable() bool {
	return u.Status == UnitStatusAssigned && u.OwnerID == nil && !u.Reservation.Active()
}

// OwnershipEvent is an append-only audit row written on every
// ownership-affecting transition. Never mutated.
type OwnershipEvent struct {
	BaseModel
	UnitID    uuid.UUID  `json:"unit_id" gorm:"type:uuid;not null;index:idx_ownership_events_unit,priority:1"`
	PrevOwner *uuid.UUID `json:"prev_owner" gorm:"type:uuid"`
	NewOwner  *uuid.UUID `json:"new_owner" gorm:"type:uuid"`
	Reason    string     `json:"reason" gorm:"type:text"`
	ActorID   *uuid.UUID `json:"actor_id" gorm:"type:uuid"`

	Unit Unit `json:"-" gorm:"foreignKey:UnitID"`
}

// MetalPrice is the latest feed row per metal, written by the price-feed
// boundary and read through the cache. Freshness is judged against FeedAt,
// not row update time.
type MetalPrice struct {
	BaseModel
	Metal        Metal     `json:"metal" gorm:"type:varchar(20);not null;index:idx_metal_prices_metal_feed,priority:1"`
	PricePerGram int64     `json:"price_per_gram" gorm:"not null"`
	FeedAt       time.Time `json:"feed_at" gorm:"not null;index:idx_metal_prices_metal_feed,priority:2"`
	Source       string    `json:"source" gorm:"size:50"`
}
