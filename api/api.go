package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/elearnhub/elearn-api/api/middleware"
	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/core/auth"
	"github.com/elearnhub/elearn-api/core/cart"
	"github.com/elearnhub/elearn-api/core/course"
	"github.com/elearnhub/elearn-api/core/enrollment"
	"github.com/elearnhub/elearn-api/core/order"
	"github.com/elearnhub/elearn-api/core/payment"
	"github.com/elearnhub/elearn-api/database"
	"github.com/elearnhub/elearn-api/payos"
	"github.com/elearnhub/elearn-api/rate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin   string
	Log          logrus.FieldLogger
	DB           *sqlx.DB
	Session      *scs.SessionManager
	PayOS        *payos.Client
	LoginLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate()
	admin := auth.Admin()
	limited := middleware.RateLimit(cfg.LoginLimiter)

	a.Handle(http.MethodGet, "/health", handleHealth(cfg.DB))

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/me", auth.HandleMe(cfg.DB), authen)

	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cart/items", cart.HandleCreateItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/items/{course_id}", cart.HandleDeleteItem(cfg.DB), authen)

	a.Handle(http.MethodGet, "/enrollments", enrollment.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/enrollments/{course_id}", enrollment.HandleCheck(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/enrollments/{id}", enrollment.HandleDelete(cfg.DB), authen)

	// The webhook is authenticated by its checksum, not by a session.
	a.Handle(http.MethodPost, "/payments/payos/webhook", payment.HandleWebhook(cfg.DB, cfg.PayOS))
	a.Handle(http.MethodPost, "/payments/payos", payment.HandlePayOSCheckout(cfg.DB, cfg.PayOS), authen)
	a.Handle(http.MethodPost, "/payments/confirm", payment.HandleConfirm(cfg.DB), authen)
	a.Handle(http.MethodPost, "/payments", payment.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/payments", payment.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/payments/{id}", payment.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPatch, "/payments/{id}/status", payment.HandleUpdateStatus(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/payments/{id}", payment.HandleCancel(cfg.DB, cfg.PayOS), authen)

	a.Handle(http.MethodPost, "/orders", order.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPatch, "/orders/{id}/status", order.HandleUpdateStatus(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/orders/{id}", order.HandleDelete(cfg.DB), authen)

	return a.Router
}

func handleHealth(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := database.StatusCheck(ctx, db); err != nil {
			return weberr.Unavailable(fmt.Errorf("database unreachable: %w", err))
		}

		return web.Respond(ctx, w, struct {
			Status string `json:"status"`
		}{Status: "ok"}, http.StatusOK)
	}
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
