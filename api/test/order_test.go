package test

import (
	"net/http"
	"testing"
	"time"

	"github.com/elearnhub/elearn-api/core/order"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
)

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	discounted := int64(90000)
	crs := ct.createCourseOK(t, 100000, &discounted)

	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	on := order.OrderNew{CourseID: "4a973e00-0b7e-4df5-bf51-b46e11e0cbe3"}
	if code := env.request(t, http.MethodPost, "/orders", on, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 ordering an unknown course, got %d", code)
	}

	on = order.OrderNew{CourseID: crs.ID}
	var ord order.Order
	if code := env.request(t, http.MethodPost, "/orders", on, &ord); code != http.StatusCreated {
		t.Fatalf("can't create order: status code %d", code)
	}
	if ord.Status != order.Pending {
		t.Fatalf("expected new order Pending, got %s", ord.Status)
	}
	if !ord.TotalAmount.Equal(decimal.NewFromInt(90000)) {
		t.Fatalf("expected discounted total 90000, got %s", ord.TotalAmount)
	}
	if ord.Method != "Bank Transfer" {
		t.Fatalf("expected default payment method, got %q", ord.Method)
	}

	var got order.Order
	if code := env.request(t, http.MethodGet, "/orders/"+ord.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("can't fetch order: status code %d", code)
	}
	diff := cmp.Diff(ord, got,
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
		cmpopts.EquateApproxTime(time.Second),
	)
	if diff != "" {
		t.Fatalf("fetched order differs from created one:\n%s", diff)
	}

	up := order.StatusUp{Status: "shipped"}
	if code := env.request(t, http.MethodPatch, "/orders/"+ord.ID+"/status", up, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}

	up = order.StatusUp{Status: order.Completed}
	if code := env.request(t, http.MethodPatch, "/orders/"+ord.ID+"/status", up, &got); code != http.StatusOK {
		t.Fatalf("can't complete order: status code %d", code)
	}
	if got.Status != order.Completed {
		t.Fatalf("expected order Completed, got %s", got.Status)
	}

	if code := env.request(t, http.MethodGet, "/enrollments/"+crs.ID, nil, nil); code != http.StatusOK {
		t.Fatalf("expected enrollment after completion, got %d", code)
	}

	// Completing again changes nothing.
	if code := env.request(t, http.MethodPatch, "/orders/"+ord.ID+"/status", up, nil); code != http.StatusOK {
		t.Fatalf("can't re-complete order: status code %d", code)
	}
	if c := ct.fetchCourseOK(t, crs.ID); c.TotalStudents != 1 {
		t.Fatalf("expected 1 student after re-completion, got %d", c.TotalStudents)
	}

	// The course is owned now, so another order for it is rejected.
	if code := env.request(t, http.MethodPost, "/orders", on, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 re-ordering an owned course, got %d", code)
	}

	var orders []order.Order
	if code := env.request(t, http.MethodGet, "/orders", nil, &orders); code != http.StatusOK {
		t.Fatalf("can't list orders: status code %d", code)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	if code := env.request(t, http.MethodDelete, "/orders/"+ord.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't delete order: status code %d", code)
	}
	if code := env.request(t, http.MethodGet, "/orders/"+ord.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}
