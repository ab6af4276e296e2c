package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Order statuses.
const (
	// OrderStatusPending marks an order awaiting payment.
	OrderStatusPending = "PENDING"
	// OrderStatusPaid marks a paid order awaiting fulfillment.
	OrderStatusPaid = "PAID"
	// OrderStatusCompleted marks a fully fulfilled order.
	OrderStatusCompleted = "COMPLETED"
	// OrderStatusCancelled marks an abandoned or expired order.
	OrderStatusCancelled = "CANCELLED"
	// OrderStatusRefunded marks a refunded order.
	OrderStatusRefunded = "REFUNDED"
)

// Order represents one purchase and owns its line items.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReferenceCode string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID shown to the buyer.

	UserID uint64 `gorm:"not null;index"`    // Buying user.
	User   *User  `gorm:"foreignKey:UserID"` // Buying user record.

	Status    string     `gorm:"type:varchar(16);not null;default:'PENDING';index"` // Payment lifecycle status.
	ExpiresAt *time.Time // Checkout deadline for pending orders.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Storefront extras (voucher code, locale, referrer).

	Items []OrderItem `gorm:"foreignKey:OrderID"` // Purchased line items.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns the public reference code when the caller left it empty.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ReferenceCode == "" {
		o.ReferenceCode = uuid.NewString()
	}
	return nil
}

// Payable reports whether allocation may run against this order.
func (o *Order) Payable() bool {
	if o == nil {
		return false
	}
	return o.Status == OrderStatusPaid || o.Status == OrderStatusCompleted
}

// OrderItem is one purchased slot inside an order, bound to at most one sub-resource.
type OrderItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderID uint64 `gorm:"not null;index"`     // Owning order.
	Order   *Order `gorm:"foreignKey:OrderID"` // Owning order record.

	AccountID uint64   `gorm:"not null;index"`       // Account the slot is sold from.
	Account   *Account `gorm:"foreignKey:AccountID"` // Account record.

	ResourceKind *string `gorm:"type:varchar(24)"` // Bound sub-resource kind after allocation.
	ResourceID   *uint64 `gorm:"index"`            // Bound sub-resource ID after allocation.

	UnitPrice float64 `gorm:"type:decimal(20,10);not null;default:0"` // Price paid for the slot.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Allocated reports whether the item already has a bound sub-resource.
func (i *OrderItem) Allocated() bool {
	return i != nil && i.ResourceKind != nil && i.ResourceID != nil
}
