package payments

import (
	"time"

	"gorm.io/datatypes"
)

// Provider-reported transaction statuses. Records mirror them verbatim.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// PaymentRecord is a verified payment. Rows are written once and never updated.
type PaymentRecord struct {
	ID               string         `gorm:"type:char(36);primaryKey"`
	UserID           string         `gorm:"type:varchar(64);not null;index:ix_payments_user_id"`
	Reference        string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_payments_reference"`
	AmountMinorUnits int64          `gorm:"not null"`
	Currency         string         `gorm:"type:char(3);not null"`
	Status           string         `gorm:"type:varchar(16);not null"`
	Provider         string         `gorm:"type:varchar(32);not null"`
	PaidAt           time.Time      `gorm:"not null"`
	GatewayPayload   datatypes.JSON `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payments" }

func (r PaymentRecord) Succeeded() bool { return r.Status == StatusSuccess }
