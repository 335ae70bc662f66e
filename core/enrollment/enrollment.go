package enrollment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Enrollment struct {
	ID         string    `json:"id" db:"enrollment_id"`
	UserID     string    `json:"userId" db:"user_id"`
	CourseID   string    `json:"courseId" db:"course_id"`
	EnrolledAt time.Time `json:"enrolledAt" db:"enrolled_at"`
}

// Owned is an enrollment joined with its course for listings.
type Owned struct {
	ID              string           `json:"id" db:"enrollment_id"`
	UserID          string           `json:"userId" db:"user_id"`
	CourseID        string           `json:"courseId" db:"course_id"`
	EnrolledAt      time.Time        `json:"enrolledAt" db:"enrolled_at"`
	Title           string           `json:"title" db:"title"`
	ImageURL        string           `json:"imageUrl" db:"image_url"`
	Price           decimal.Decimal  `json:"price" db:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice" db:"discounted_price"`
}
