package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, course_id, status, payment_method,
		 total_amount, discount_amount, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :course_id, :status, :payment_method,
		 :total_amount, :discount_amount, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	in := struct {
		ID string `db:"order_id"`
	}{ID: orderID}

	const q = `SELECT * FROM orders WHERE order_id = :order_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return Order{}, fmt.Errorf("querying order[%s]: %w", orderID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Order{}, fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	var ord Order
	if err := rows.StructScan(&ord); err != nil {
		return Order{}, fmt.Errorf("scanning order: %w", err)
	}

	return ord, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{UserID: userID}

	const q = `SELECT * FROM orders WHERE user_id = :user_id ORDER BY created_at DESC`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return nil, fmt.Errorf("querying orders of user[%s]: %w", userID, err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var ord Order
		if err := rows.StructScan(&ord); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, ord)
	}

	return orders, rows.Err()
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	UPDATE orders
	SET status = :status, updated_at = :updated_at
	WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", ord.ID, err)
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, orderID string) error {
	in := struct {
		ID string `db:"order_id"`
	}{ID: orderID}

	const q = `DELETE FROM orders WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("deleting order[%s]: %w", orderID, err)
	}

	return nil
}
