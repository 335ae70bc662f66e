package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending Status = "Pending"
	Success Status = "Success"
	Failed  Status = "Failed"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Success, Failed:
		return true
	}
	return false
}

// Payment records one checkout attempt. The amount is computed from the
// cart at creation and never rewritten afterwards; only status and
// transaction metadata change. The order code correlates provider
// callbacks back to this record.
type Payment struct {
	ID            string          `json:"id" db:"payment_id"`
	UserID        string          `json:"userId" db:"user_id"`
	CartID        string          `json:"cartId" db:"cart_id"`
	Method        string          `json:"paymentMethod" db:"payment_method"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        Status          `json:"status" db:"status"`
	TransactionID *string         `json:"transactionId" db:"transaction_id"`
	PaymentDate   *time.Time      `json:"paymentDate" db:"payment_date"`
	OrderCode     *int64          `json:"orderCode" db:"order_code"`
	CheckoutURL   *string         `json:"checkoutUrl" db:"checkout_url"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

type PaymentNew struct {
	Method string `json:"payment_method" validate:"required"`
}

// StatusUp carries the admin status override. Unsupplied transaction
// fields keep their stored values.
type StatusUp struct {
	Status        Status     `json:"status" validate:"required"`
	TransactionID *string    `json:"transaction_id"`
	PaymentDate   *time.Time `json:"payment_date"`
}

type Confirm struct {
	PaymentID     string `json:"paymentId" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Status        Status `json:"status" validate:"required"`
}
