package models

import "time"

// Transaction statuses.
const (
	// TransactionStatusPending marks a payment attempt still in flight.
	TransactionStatusPending = "PENDING"
	// TransactionStatusSuccess marks a settled payment.
	TransactionStatusSuccess = "SUCCESS"
	// TransactionStatusFailed marks a failed or abandoned payment.
	TransactionStatusFailed = "FAILED"
)

// Transaction records one payment attempt against an order.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderID uint64 `gorm:"not null;index"`     // Paid order.
	Order   *Order `gorm:"foreignKey:OrderID"` // Paid order record.

	Amount   float64 `gorm:"type:decimal(20,10);not null"`                      // Charged amount.
	Status   string  `gorm:"type:varchar(16);not null;default:'PENDING';index"` // Payment attempt status.
	Provider string  `gorm:"type:varchar(32)"`                                  // Gateway identifier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
