package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/core/cart"
	"github.com/elearnhub/elearn-api/core/claims"
	"github.com/elearnhub/elearn-api/core/enrollment"
	"github.com/elearnhub/elearn-api/database"
	"github.com/elearnhub/elearn-api/payos"
	"github.com/elearnhub/elearn-api/random"
	"github.com/elearnhub/elearn-api/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// checkout loads the user's cart and rejects the attempt when any item
// is already owned, naming the offending course.
func checkout(ctx context.Context, db *sqlx.DB, userID string) (cart.Cart, error) {
	crt, err := cart.FetchByUser(ctx, db, userID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return cart.Cart{}, weberr.NotFound(err)
		}
		return cart.Cart{}, fmt.Errorf("fetching cart of user[%s]: %w", userID, err)
	}

	items, err := cart.FetchItems(ctx, db, crt.ID)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("fetching items of cart[%s]: %w", crt.ID, err)
	}

	if len(items) == 0 {
		err := errors.New("cart is empty")
		return cart.Cart{}, weberr.NewError(err, err.Error(), http.StatusBadRequest)
	}

	for _, it := range items {
		enrolled, err := enrollment.Check(ctx, db, userID, it.CourseID)
		if err != nil {
			return cart.Cart{}, fmt.Errorf("checking enrollment of user[%s]: %w", userID, err)
		}
		if enrolled {
			err := fmt.Errorf("course %q already purchased", it.Title)
			return cart.Cart{}, weberr.NewError(err, err.Error(), http.StatusConflict)
		}
	}

	crt.Items = items
	return crt, nil
}

func total(items []cart.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.PurchasePrice())
	}
	return sum
}

// generateOrderCode builds the time-based correlation id echoed back by
// the provider in callbacks.
func generateOrderCode() int64 {
	return time.Now().UnixMilli()*1000 + random.Number(1000)
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var pn PaymentNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.BadRequest(err)
		}

		crt, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		pay := Payment{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			CartID:    crt.ID,
			Method:    pn.Method,
			Amount:    total(crt.Items),
			Status:    Pending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, pay); err != nil {
			return fmt.Errorf("creating payment: %w", err)
		}

		return web.Respond(ctx, w, pay, http.StatusCreated)
	}
}

func HandlePayOSCheckout(db *sqlx.DB, client *payos.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		amount := total(crt.Items)
		orderCode := generateOrderCode()

		now := time.Now().UTC()
		pay := Payment{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			CartID:    crt.ID,
			Method:    "PayOS",
			Amount:    amount,
			Status:    Pending,
			OrderCode: &orderCode,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, pay); err != nil {
			return fmt.Errorf("creating payment: %w", err)
		}

		items := make([]payos.Item, 0, len(crt.Items))
		for _, it := range crt.Items {
			items = append(items, payos.Item{
				Name:     it.Title,
				Quantity: 1,
				Price:    it.PurchasePrice().Round(0).IntPart(),
			})
		}

		req := payos.CheckoutRequest{
			OrderCode: orderCode,
			// The provider takes whole currency units; the stored amount
			// keeps the precise cart total.
			Amount:      amount.Round(0).IntPart(),
			Description: fmt.Sprintf("Order %d", orderCode),
			Items:       items,
		}

		link, err := client.CreatePaymentLink(ctx, req)
		if err != nil {
			// The pending payment stays behind without a checkout URL;
			// the client may retry checkout creation.
			return weberr.Unavailable(fmt.Errorf("creating checkout session: %w", err))
		}

		pay.CheckoutURL = &link.CheckoutURL
		pay.UpdatedAt = time.Now().UTC()
		if err := Update(ctx, db, pay); err != nil {
			return fmt.Errorf("storing checkout url of payment[%s]: %w", pay.ID, err)
		}

		return web.Respond(ctx, w, pay, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		payments, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching payments of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, payments, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		paymentID := web.Param(r, "id")
		if err := validate.CheckID(paymentID); err != nil {
			return weberr.BadRequest(err)
		}

		pay, err := Fetch(ctx, db, paymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching payment[%s]: %w", paymentID, err)
		}

		if pay.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("payment belongs to another user"))
		}

		return web.Respond(ctx, w, pay, http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		paymentID := web.Param(r, "id")
		if err := validate.CheckID(paymentID); err != nil {
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

		pay, err := Fetch(ctx, db, paymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching payment[%s]: %w", paymentID, err)
		}

		if _, err := transition(ctx, db, pay, up.Status, up.TransactionID, up.PaymentDate); err != nil {
			return fmt.Errorf("updating payment[%s]: %w", paymentID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleConfirm(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cf Confirm
		if err := web.Decode(w, r, &cf); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cf); err != nil {
			return weberr.BadRequest(err)
		}

		if cf.Status != Success && cf.Status != Failed {
			err := fmt.Errorf("invalid confirmation status %q", cf.Status)
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		pay, err := Fetch(ctx, db, cf.PaymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching payment[%s]: %w", cf.PaymentID, err)
		}

		if pay.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("payment belongs to another user"))
		}

		now := time.Now().UTC()
		if _, err := transition(ctx, db, pay, cf.Status, &cf.TransactionID, &now); err != nil {
			return fmt.Errorf("confirming payment[%s]: %w", cf.PaymentID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleCancel fails a payment. When a provider session exists the
// provider-side cancellation must succeed before the local record
// flips; a provider failure leaves the payment untouched.
func HandleCancel(db *sqlx.DB, client *payos.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		paymentID := web.Param(r, "id")
		if err := validate.CheckID(paymentID); err != nil {
			return weberr.BadRequest(err)
		}

		pay, err := Fetch(ctx, db, paymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching payment[%s]: %w", paymentID, err)
		}

		if pay.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("payment belongs to another user"))
		}

		// Administrative cleanup removes the row instead of failing it.
		if claims.IsAdmin(ctx) && r.URL.Query().Get("purge") == "true" {
			if err := Delete(ctx, db, pay.ID); err != nil {
				return fmt.Errorf("purging payment[%s]: %w", paymentID, err)
			}
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		// A settled payment granted its enrollments already; undoing it
		// is a refund concern, not a cancellation.
		if pay.Status == Success {
			err := errors.New("payment already settled")
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		}

		if pay.OrderCode != nil && pay.Status == Pending {
			if err := client.CancelPaymentLink(ctx, *pay.OrderCode, "cancelled by user"); err != nil {
				return weberr.Unavailable(fmt.Errorf("cancelling checkout session: %w", err))
			}
		}

		if _, err := transition(ctx, db, pay, Failed, nil, nil); err != nil {
			return fmt.Errorf("cancelling payment[%s]: %w", paymentID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// transition rewrites the payment with the target status, carrying
// forward every field not supplied. A first transition into Success
// materializes the enrollments for the snapshotted cart and clears it;
// a repeated Success is a no-op on both.
func transition(ctx context.Context, db *sqlx.DB, pay Payment, target Status, transactionID *string, paymentDate *time.Time) (Payment, error) {
	prior := pay.Status

	pay.Status = target
	if transactionID != nil {
		pay.TransactionID = transactionID
	}
	if paymentDate != nil {
		pay.PaymentDate = paymentDate
	}
	pay.UpdatedAt = time.Now().UTC()

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Update(ctx, tx, pay); err != nil {
			return err
		}

		if target != Success || prior == Success {
			return nil
		}

		items, err := cart.FetchItems(ctx, tx, pay.CartID)
		if err != nil {
			return err
		}

		courseIDs := make([]string, 0, len(items))
		for _, it := range items {
			courseIDs = append(courseIDs, it.CourseID)
		}

		if err := enrollment.Materialize(ctx, tx, pay.UserID, courseIDs); err != nil {
			return err
		}

		return cart.Clear(ctx, tx, pay.CartID)
	})
	if err != nil {
		return Payment{}, fmt.Errorf("transitioning payment[%s] to %s: %w", pay.ID, target, err)
	}

	return pay, nil
}
