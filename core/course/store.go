package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("course not found")

func Create(ctx context.Context, db sqlx.ExtContext, crs Course) error {
	const q = `
	INSERT INTO courses
		(course_id, title, description, image_url, price, discounted_price,
		 active, total_students, created_at, updated_at, version)
	VALUES
		(:course_id, :title, :description, :image_url, :price, :discounted_price,
		 :active, :total_students, :created_at, :updated_at, :version)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, crs); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, crs Course) error {
	const q = `
	UPDATE courses
	SET
		title = :title,
		description = :description,
		image_url = :image_url,
		price = :price,
		discounted_price = :discounted_price,
		active = :active,
		updated_at = :updated_at,
		version = version + 1
	WHERE
		course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, crs); err != nil {
		return fmt.Errorf("updating course[%s]: %w", crs.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, courseID string) (Course, error) {
	in := struct {
		ID string `db:"course_id"`
	}{ID: courseID}

	const q = `SELECT * FROM courses WHERE course_id = :course_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return Course{}, fmt.Errorf("querying course[%s]: %w", courseID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Course{}, fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	var crs Course
	if err := rows.StructScan(&crs); err != nil {
		return Course{}, fmt.Errorf("scanning course: %w", err)
	}

	return crs, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE active ORDER BY created_at DESC`

	var courses []Course
	if err := sqlx.SelectContext(ctx, db, &courses, q); err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}

	return courses, nil
}

// IncrementStudents moves the cached student counter by delta. Called
// only by enrollment creation and deletion, inside their transactions.
func IncrementStudents(ctx context.Context, db sqlx.ExtContext, courseID string, delta int) error {
	in := struct {
		ID    string `db:"course_id"`
		Delta int    `db:"delta"`
	}{ID: courseID, Delta: delta}

	const q = `
	UPDATE courses
	SET total_students = total_students + :delta
	WHERE course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("updating student count of course[%s]: %w", courseID, err)
	}

	return nil
}
