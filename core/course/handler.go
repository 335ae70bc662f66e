package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		crs := Course{
			ID:              validate.GenerateID(),
			Title:           cn.Title,
			Description:     cn.Description,
			ImageURL:        cn.ImageURL,
			Price:           cn.Price,
			DiscountedPrice: cn.DiscountedPrice,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
			Version:         1,
		}

		if err := Create(ctx, db, crs); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}

		return web.Respond(ctx, w, crs, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		crs, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if cu.Title != nil {
			crs.Title = *cu.Title
		}
		if cu.Description != nil {
			crs.Description = *cu.Description
		}
		if cu.ImageURL != nil {
			crs.ImageURL = *cu.ImageURL
		}
		if cu.Price != nil {
			crs.Price = *cu.Price
		}
		if cu.DiscountedPrice != nil {
			crs.DiscountedPrice = cu.DiscountedPrice
		}
		if cu.Active != nil {
			crs.Active = *cu.Active
		}
		crs.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, crs); err != nil {
			return fmt.Errorf("updating course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, crs, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		crs, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, crs, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courses, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching courses: %w", err)
		}

		if courses == nil {
			courses = []Course{}
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}
