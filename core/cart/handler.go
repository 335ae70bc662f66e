package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/core/claims"
	"github.com/elearnhub/elearn-api/core/course"
	"github.com/elearnhub/elearn-api/core/enrollment"
	"github.com/elearnhub/elearn-api/database"
	"github.com/elearnhub/elearn-api/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching cart of user[%s]: %w", clm.UserID, err)
		}

		items, err := FetchItems(ctx, db, crt.ID)
		if err != nil {
			return fmt.Errorf("fetching items of cart[%s]: %w", crt.ID, err)
		}
		crt.Items = items

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := course.Fetch(ctx, db, in.CourseID); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", in.CourseID, err)
		}

		enrolled, err := enrollment.Check(ctx, db, clm.UserID, in.CourseID)
		if err != nil {
			return fmt.Errorf("checking enrollment of user[%s]: %w", clm.UserID, err)
		}
		if enrolled {
			err := errors.New("course already purchased")
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		}

		crt, err := FetchOrCreate(ctx, db, clm.UserID, validate.GenerateID())
		if err != nil {
			return fmt.Errorf("fetching or creating cart of user[%s]: %w", clm.UserID, err)
		}

		it := Item{
			CartID:    crt.ID,
			CourseID:  in.CourseID,
			CreatedAt: time.Now().UTC(),
		}

		if err := CreateItem(ctx, db, it); err != nil {
			if database.IsUniqueViolation(err) {
				err := errors.New("course already in cart")
				return weberr.NewError(err, err.Error(), http.StatusConflict)
			}
			return fmt.Errorf("adding course[%s] to cart[%s]: %w", in.CourseID, crt.ID, err)
		}

		return web.Respond(ctx, w, it, http.StatusCreated)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		crt, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching cart of user[%s]: %w", clm.UserID, err)
		}

		if err := DeleteItem(ctx, db, crt.ID, courseID); err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("removing course[%s] from cart[%s]: %w", courseID, crt.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleClear(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return fmt.Errorf("fetching cart of user[%s]: %w", clm.UserID, err)
		}

		if err := Clear(ctx, db, crt.ID); err != nil {
			return fmt.Errorf("clearing cart[%s]: %w", crt.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
