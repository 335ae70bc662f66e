package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        string    `json:"id" db:"cart_id"`
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Items     []Item    `json:"items" db:"-"`
}

// Item is a cart entry joined with the current pricing of its course.
type Item struct {
	CartID          string           `json:"-" db:"cart_id"`
	CourseID        string           `json:"courseId" db:"course_id"`
	Title           string           `json:"title" db:"title"`
	Price           decimal.Decimal  `json:"price" db:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice" db:"discounted_price"`
	CreatedAt       time.Time        `json:"createdAt" db:"created_at"`
}

// PurchasePrice is the discounted price when one is set, the list price
// otherwise.
func (i Item) PurchasePrice() decimal.Decimal {
	if i.DiscountedPrice != nil {
		return *i.DiscountedPrice
	}
	return i.Price
}

type ItemNew struct {
	CourseID string `json:"course_id" validate:"required"`
}
