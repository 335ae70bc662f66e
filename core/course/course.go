package course

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID              string           `json:"id" db:"course_id"`
	Title           string           `json:"title" db:"title"`
	Description     string           `json:"description" db:"description"`
	ImageURL        string           `json:"imageUrl" db:"image_url"`
	Price           decimal.Decimal  `json:"price" db:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice" db:"discounted_price"`
	Active          bool             `json:"active" db:"active"`
	TotalStudents   int              `json:"totalStudents" db:"total_students"`
	CreatedAt       time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" db:"updated_at"`
	Version         int              `json:"-" db:"version"`
}

// PurchasePrice is the discounted price when one is set, the list price
// otherwise.
func (c Course) PurchasePrice() decimal.Decimal {
	if c.DiscountedPrice != nil {
		return *c.DiscountedPrice
	}
	return c.Price
}

type CourseNew struct {
	Title           string           `json:"title" validate:"required"`
	Description     string           `json:"description" validate:"required"`
	ImageURL        string           `json:"imageUrl"`
	Price           decimal.Decimal  `json:"price" validate:"required"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice"`
}

type CourseUp struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	ImageURL        *string          `json:"imageUrl"`
	Price           *decimal.Decimal `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice"`
	Active          *bool            `json:"active"`
}
