package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound     = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not in cart")
)

// FetchByUser returns the user's cart row without its items.
func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{UserID: userID}

	const q = `SELECT * FROM carts WHERE user_id = :user_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return Cart{}, fmt.Errorf("querying cart of user[%s]: %w", userID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Cart{}, fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	var crt Cart
	if err := rows.StructScan(&crt); err != nil {
		return Cart{}, fmt.Errorf("scanning cart: %w", err)
	}

	return crt, nil
}

// FetchOrCreate returns the user's cart, creating it lazily on first use.
// A concurrent creation race lands on the user_id uniqueness and falls
// through to the fetch.
func FetchOrCreate(ctx context.Context, db sqlx.ExtContext, userID string, id string) (Cart, error) {
	now := time.Now().UTC()
	crt := Cart{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `
	INSERT INTO carts
		(cart_id, user_id, created_at, updated_at)
	VALUES
		(:cart_id, :user_id, :created_at, :updated_at)
	ON CONFLICT (user_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, q, crt); err != nil {
		return Cart{}, fmt.Errorf("inserting cart for user[%s]: %w", userID, err)
	}

	return FetchByUser(ctx, db, userID)
}

// FetchItems returns the cart's items joined with current course pricing.
func FetchItems(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Item, error) {
	in := struct {
		CartID string `db:"cart_id"`
	}{CartID: cartID}

	const q = `
	SELECT
		ci.cart_id, ci.course_id, ci.created_at,
		c.title, c.price, c.discounted_price
	FROM
		cart_items ci JOIN courses c ON ci.course_id = c.course_id
	WHERE
		ci.cart_id = :cart_id
	ORDER BY
		ci.created_at`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return nil, fmt.Errorf("querying items of cart[%s]: %w", cartID, err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.StructScan(&it); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items
		(cart_id, course_id, created_at)
	VALUES
		(:cart_id, :course_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting item in cart[%s]: %w", it.CartID, err)
	}

	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, cartID string, courseID string) error {
	in := struct {
		CartID   string `db:"cart_id"`
		CourseID string `db:"course_id"`
	}{CartID: cartID, CourseID: courseID}

	const q = `DELETE FROM cart_items WHERE cart_id = :cart_id AND course_id = :course_id`

	res, err := sqlx.NamedExecContext(ctx, db, q, in)
	if err != nil {
		return fmt.Errorf("deleting item of cart[%s]: %w", cartID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}

	return nil
}

// Clear removes every item from the cart. Clearing an already empty
// cart is a no-op.
func Clear(ctx context.Context, db sqlx.ExtContext, cartID string) error {
	in := struct {
		CartID string `db:"cart_id"`
	}{CartID: cartID}

	const q = `DELETE FROM cart_items WHERE cart_id = :cart_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("clearing cart[%s]: %w", cartID, err)
	}

	return nil
}
