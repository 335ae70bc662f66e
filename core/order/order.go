package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Completed, Cancelled:
		return true
	}
	return false
}

// Order is the legacy single-course purchase record kept alongside the
// cart checkout pipeline. Completing one grants the enrollment directly.
type Order struct {
	ID             string          `json:"id" db:"order_id"`
	UserID         string          `json:"userId" db:"user_id"`
	CourseID       string          `json:"courseId" db:"course_id"`
	Status         Status          `json:"status" db:"status"`
	Method         string          `json:"paymentMethod" db:"payment_method"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type OrderNew struct {
	CourseID       string           `json:"course_id" validate:"required"`
	Method         string           `json:"payment_method"`
	DiscountAmount *decimal.Decimal `json:"discount_amount"`
}

type StatusUp struct {
	Status Status `json:"status" validate:"required"`
}
