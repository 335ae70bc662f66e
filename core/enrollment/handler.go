package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/core/claims"
	"github.com/elearnhub/elearn-api/core/course"
	"github.com/elearnhub/elearn-api/database"
	"github.com/elearnhub/elearn-api/validate"
	"github.com/jmoiron/sqlx"
)

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		owned, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching enrollments of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, owned, http.StatusOK)
	}
}

func HandleCheck(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		found, err := Check(ctx, db, clm.UserID, courseID)
		if err != nil {
			return fmt.Errorf("checking enrollment of user[%s]: %w", clm.UserID, err)
		}
		if !found {
			return weberr.NotFound(errors.New("not enrolled in this course"))
		}

		return web.Respond(ctx, w, struct {
			Enrolled bool `json:"enrolled"`
		}{Enrolled: true}, http.StatusOK)
	}
}

// HandleDelete revokes a grant and gives the course's cached student
// counter back, in one transaction.
func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		enrollmentID := web.Param(r, "id")
		if err := validate.CheckID(enrollmentID); err != nil {
			return weberr.BadRequest(err)
		}

		enr, err := Fetch(ctx, db, enrollmentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching enrollment[%s]: %w", enrollmentID, err)
		}

		if enr.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("enrollment belongs to another user"))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Delete(ctx, tx, enr.ID); err != nil {
				return err
			}

			return course.IncrementStudents(ctx, tx, enr.CourseID, -1)
		})
		if err != nil {
			return fmt.Errorf("deleting enrollment[%s]: %w", enrollmentID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
