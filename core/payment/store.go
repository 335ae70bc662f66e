package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("payment not found")

func Create(ctx context.Context, db sqlx.ExtContext, pay Payment) error {
	const q = `
	INSERT INTO payments
		(payment_id, user_id, cart_id, payment_method, amount, status,
		 transaction_id, payment_date, order_code, checkout_url, created_at, updated_at)
	VALUES
		(:payment_id, :user_id, :cart_id, :payment_method, :amount, :status,
		 :transaction_id, :payment_date, :order_code, :checkout_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, pay); err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}

	return nil
}

// Update rewrites the full record. Callers carry forward every field
// they do not mean to change.
func Update(ctx context.Context, db sqlx.ExtContext, pay Payment) error {
	const q = `
	UPDATE payments
	SET
		user_id = :user_id,
		cart_id = :cart_id,
		payment_method = :payment_method,
		amount = :amount,
		status = :status,
		transaction_id = :transaction_id,
		payment_date = :payment_date,
		order_code = :order_code,
		checkout_url = :checkout_url,
		updated_at = :updated_at
	WHERE
		payment_id = :payment_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, pay); err != nil {
		return fmt.Errorf("updating payment[%s]: %w", pay.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, paymentID string) (Payment, error) {
	in := struct {
		ID string `db:"payment_id"`
	}{ID: paymentID}

	const q = `SELECT * FROM payments WHERE payment_id = :payment_id`

	return fetchOne(ctx, db, q, in)
}

func FetchByOrderCode(ctx context.Context, db sqlx.ExtContext, orderCode int64) (Payment, error) {
	in := struct {
		OrderCode int64 `db:"order_code"`
	}{OrderCode: orderCode}

	const q = `SELECT * FROM payments WHERE order_code = :order_code`

	return fetchOne(ctx, db, q, in)
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Payment, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{UserID: userID}

	const q = `SELECT * FROM payments WHERE user_id = :user_id ORDER BY created_at DESC`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return nil, fmt.Errorf("querying payments of user[%s]: %w", userID, err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var pay Payment
		if err := rows.StructScan(&pay); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		payments = append(payments, pay)
	}

	return payments, rows.Err()
}

// Delete removes the payment row entirely. Regular cancellation is a
// status transition; this exists for administrative cleanup only.
func Delete(ctx context.Context, db sqlx.ExtContext, paymentID string) error {
	in := struct {
		ID string `db:"payment_id"`
	}{ID: paymentID}

	const q = `DELETE FROM payments WHERE payment_id = :payment_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("deleting payment[%s]: %w", paymentID, err)
	}

	return nil
}

func fetchOne(ctx context.Context, db sqlx.ExtContext, query string, arg interface{}) (Payment, error) {
	rows, err := sqlx.NamedQueryContext(ctx, db, query, arg)
	if err != nil {
		return Payment{}, fmt.Errorf("querying payment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Payment{}, fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	var pay Payment
	if err := rows.StructScan(&pay); err != nil {
		return Payment{}, fmt.Errorf("scanning payment: %w", err)
	}

	return pay, nil
}
