package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elearnhub/elearn-api/core/course"
	"github.com/elearnhub/elearn-api/validate"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("enrollment not found")

// Check reports whether the user holds an enrollment for the course.
// The check is scoped to active courses: a grant on a deactivated
// course does not gate a new purchase.
func Check(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (bool, error) {
	in := struct {
		UserID   string `db:"user_id"`
		CourseID string `db:"course_id"`
	}{UserID: userID, CourseID: courseID}

	const q = `
	SELECT EXISTS (
		SELECT 1
		FROM enrollments e JOIN courses c ON e.course_id = c.course_id
		WHERE e.user_id = :user_id AND e.course_id = :course_id AND c.active
	) AS found`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return false, fmt.Errorf("checking enrollment of user[%s] in course[%s]: %w", userID, courseID, err)
	}
	defer rows.Close()

	var found bool
	if rows.Next() {
		if err := rows.Scan(&found); err != nil {
			return false, fmt.Errorf("scanning enrollment check: %w", err)
		}
	}

	return found, rows.Err()
}

// Create inserts the enrollment and reports whether a row was actually
// added. The (user_id, course_id) uniqueness makes it safe to call when
// the grant already exists, which is what keeps replayed settlement
// callbacks from double-enrolling.
func Create(ctx context.Context, db sqlx.ExtContext, enr Enrollment) (bool, error) {
	const q = `
	INSERT INTO enrollments
		(enrollment_id, user_id, course_id, enrolled_at)
	VALUES
		(:enrollment_id, :user_id, :course_id, :enrolled_at)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, db, q, enr)
	if err != nil {
		return false, fmt.Errorf("inserting enrollment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking inserted rows: %w", err)
	}

	return n > 0, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, enrollmentID string) (Enrollment, error) {
	in := struct {
		ID string `db:"enrollment_id"`
	}{ID: enrollmentID}

	const q = `SELECT * FROM enrollments WHERE enrollment_id = :enrollment_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return Enrollment{}, fmt.Errorf("querying enrollment[%s]: %w", enrollmentID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Enrollment{}, fmt.Errorf("%w: %v", ErrNotFound, sql.ErrNoRows)
	}

	var enr Enrollment
	if err := rows.StructScan(&enr); err != nil {
		return Enrollment{}, fmt.Errorf("scanning enrollment: %w", err)
	}

	return enr, nil
}

// FetchByUser lists the user's enrollments joined with course data,
// limited to active courses.
func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Owned, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{UserID: userID}

	const q = `
	SELECT
		e.enrollment_id, e.user_id, e.course_id, e.enrolled_at,
		c.title, c.image_url, c.price, c.discounted_price
	FROM
		enrollments e JOIN courses c ON e.course_id = c.course_id
	WHERE
		e.user_id = :user_id AND c.active
	ORDER BY
		e.enrolled_at DESC`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, in)
	if err != nil {
		return nil, fmt.Errorf("querying enrollments of user[%s]: %w", userID, err)
	}
	defer rows.Close()

	owned := []Owned{}
	for rows.Next() {
		var o Owned
		if err := rows.StructScan(&o); err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		owned = append(owned, o)
	}

	return owned, rows.Err()
}

func Delete(ctx context.Context, db sqlx.ExtContext, enrollmentID string) error {
	in := struct {
		ID string `db:"enrollment_id"`
	}{ID: enrollmentID}

	const q = `DELETE FROM enrollments WHERE enrollment_id = :enrollment_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("deleting enrollment[%s]: %w", enrollmentID, err)
	}

	return nil
}

// Materialize grants the user one enrollment per course, skipping grants
// that already exist and bumping each course's student counter only for
// rows actually inserted. Safe to call repeatedly with the same inputs;
// callers run it inside the settlement transaction.
func Materialize(ctx context.Context, tx sqlx.ExtContext, userID string, courseIDs []string) error {
	now := time.Now().UTC()
	for _, courseID := range courseIDs {
		enr := Enrollment{
			ID:         validate.GenerateID(),
			UserID:     userID,
			CourseID:   courseID,
			EnrolledAt: now,
		}

		created, err := Create(ctx, tx, enr)
		if err != nil {
			return fmt.Errorf("enrolling user[%s] in course[%s]: %w", userID, courseID, err)
		}

		if created {
			if err := course.IncrementStudents(ctx, tx, courseID, 1); err != nil {
				return err
			}
		}
	}

	return nil
}
