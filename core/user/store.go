package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("user not found")

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, usr); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (User, error) {
	in := struct {
		ID string `db:"user_id"`
	}{ID: userID}

	const q = `SELECT * FROM users WHERE user_id = :user_id`

	var usr User
	if err := namedQueryStruct(ctx, db, q, in, &usr); err != nil {
		return User{}, err
	}

	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	in := struct {
		Email string `db:"email"`
	}{Email: email}

	const q = `SELECT * FROM users WHERE email = :email`

	var usr User
	if err := namedQueryStruct(ctx, db, q, in, &usr); err != nil {
		return User{}, err
	}

	return usr, nil
}

func namedQueryStruct(ctx context.Context, db sqlx.ExtContext, query string, arg interface{}, dest *User) error {
	rows, err := sqlx.NamedQueryContext(ctx, db, query, arg)
	if err != nil {
		return fmt.Errorf("querying user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	if err := rows.StructScan(dest); err != nil {
		return fmt.Errorf("scanning user: %w", err)
	}

	return nil
}
