// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is one settlement aggregate: a pending order holds unit reservations
// and price snapshots but has made no ledger movement yet. Money and
// ownership move together at the paid transition.
type Order struct {
	BaseModel
	CustomerID   uuid.UUID    `json:"customer_id" gorm:"type:uuid;not null;index"`
	Channel      OrderChannel `json:"channel" gorm:"type:varchar(10);not null;default:'web';index"`
	Status       OrderStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_orders_status_created,priority:1"`
	TotalAmount  int64        `json:"total_amount" gorm:"not null"`
	TaxAmount    int64        `json:"tax_amount" gorm:"not null;default:0"`
	PaymentRef   string       `json:"payment_ref" gorm:"size:255"`
	DeliveryInfo JSONB        `json:"delivery_info" gorm:"type:jsonb"`
	PaidAt       *time.Time   `json:"paid_at"`
	CancelledAt  *time.Time   `json:"cancelled_at"`
	CancelReason string       `json:"cancel_reason,omitempty" gorm:"type:text"`

	Customer User        `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Lines    []OrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderLine pins one reserved unit to the price snapshot taken when the
// reservation was made. The snapshot is authoritative: later feed movement
// cannot change what is charged.
type OrderLine struct {
	BaseModel
	OrderID      uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	UnitID       uuid.UUID `json:"unit_id" gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	PricePerGram int64     `json:"price_per_gram" gorm:"not null"`
	MetalValue   int64     `json:"metal_value" gorm:"not null"`
	Wage         int64     `json:"wage" gorm:"not null"`
	Tax          int64     `json:"tax" gorm:"not null;default:0"`
	LineTotal    int64     `json:"line_total" gorm:"not null"`
	Gift         bool      `json:"gift" gorm:"default:false"`

	Order   Order   `json:"-" gorm:"foreignKey:OrderID"`
	Unit    Unit    `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// Buyback records the platform repurchasing a sold unit from its owner.
// Metal value and wage refund are two distinct ledger entries.
type Buyback struct {
	BaseModel
	UnitID     uuid.UUID  `json:"unit_id" gorm:"type:uuid;not null;index"`
	SellerID   uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	DealerID   uuid.UUID  `json:"dealer_id" gorm:"type:uuid;not null;index"`
	MetalValue int64      `json:"metal_value" gorm:"not null"`
	WageRefund int64      `json:"wage_refund" gorm:"not null"`
	PriceBasis PriceBasis `json:"price_basis" gorm:"type:varchar(20);not null"`

	Unit   Unit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Seller User `json:"-" gorm:"foreignKey:SellerID"`
}

// TopUp tracks one gateway-funded cash deposit into a wallet. The ledger
// entry is only written after the provider confirms the capture.
type TopUp struct {
	BaseModel
	OwnerID    uuid.UUID   `json:"owner_id" gorm:"type:uuid;not null;index"`
	Amount     int64       `json:"amount" gorm:"not null"`
	PaymentRef string      `json:"payment_ref" gorm:"size:255;not null;uniqueIndex"`
	Status     TopUpStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreditedAt *time.Time  `json:"credited_at"`

	Owner User `json:"-" gorm:"foreignKey:OwnerID"`
}

// WithdrawalRequest asks to pay out withdrawable cash to an external
// destination. The amount is held at creation, committed on approval and
// released on rejection.
type WithdrawalRequest struct {
	BaseModel
	OwnerID     uuid.UUID        `json:"owner_id" gorm:"type:uuid;not null;index"`
	Amount      int64            `json:"amount" gorm:"not null"`
	Destination JSONB            `json:"destination" gorm:"type:jsonb"`
	Status      WithdrawalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	DecidedBy   *uuid.UUID       `json:"decided_by" gorm:"type:uuid"`
	DecidedAt   *time.Time       `json:"decided_at"`
	Note        string           `json:"note,omitempty" gorm:"type:text"`

	Owner User `json:"-" gorm:"foreignKey:OwnerID"`
}
