package order

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
	"github.com/shopspring/decimal"
)

const defaultMethod = "Bank Transfer"

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var on OrderNew
		if err := web.Decode(w, r, &on); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(on); err != nil {
			return weberr.BadRequest(err)
		}

		crs, err := course.Fetch(ctx, db, on.CourseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", on.CourseID, err)
		}

		enrolled, err := enrollment.Check(ctx, db, clm.UserID, crs.ID)
		if err != nil {
			return fmt.Errorf("checking enrollment of user[%s]: %w", clm.UserID, err)
		}
		if enrolled {
			err := errors.New("course already purchased")
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		}

		method := on.Method
		if method == "" {
			method = defaultMethod
		}

		discount := decimal.Zero
		if on.DiscountAmount != nil {
			discount = *on.DiscountAmount
		}

		now := time.Now().UTC()
		ord := Order{
			ID:             validate.GenerateID(),
			UserID:         clm.UserID,
			CourseID:       crs.ID,
			Status:         Pending,
			Method:         method,
			TotalAmount:    crs.PurchasePrice(),
			DiscountAmount: discount,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := Create(ctx, db, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("order belongs to another user"))
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleUpdateStatus moves an order through its lifecycle. The first
// transition into completed grants the enrollment; repeating it changes
// nothing because the grant is keyed on (user, course).
func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if !up.Status.Valid() {
			err := fmt.Errorf("invalid status %q", up.Status)
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("order belongs to another user"))
		}

		prior := ord.Status
		ord.Status = up.Status
		ord.UpdatedAt = time.Now().UTC()

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := UpdateStatus(ctx, tx, ord); err != nil {
				return err
			}

			if up.Status == Completed && prior != Completed {
				return enrollment.Materialize(ctx, tx, ord.UserID, []string{ord.CourseID})
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("updating status of order[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("order belongs to another user"))
		}

		if err := Delete(ctx, db, ord.ID); err != nil {
			return fmt.Errorf("deleting order[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
