package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/elearnhub/elearn-api/core/cart"
	"github.com/elearnhub/elearn-api/core/enrollment"
	"github.com/elearnhub/elearn-api/core/order"
	"github.com/elearnhub/elearn-api/core/payment"
	"github.com/elearnhub/elearn-api/payos"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// mockPayos stands in for the provider API. It records every checkout
// session and cancellation and can be told to reject the next call.
type mockPayos struct {
	mu        sync.Mutex
	created   []int64
	cancelled []int64
	failNext  bool
}

func newMockPayos() *mockPayos {
	return &mockPayos{}
}

func (m *mockPayos) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

func (m *mockPayos) Created() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.created...)
}

func (m *mockPayos) Cancelled() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.cancelled...)
}

func (m *mockPayos) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v2/payment-requests", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderCode int64 `json:"orderCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		fail := m.failNext
		m.failNext = false
		if !fail {
			m.created = append(m.created, req.OrderCode)
		}
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			json.NewEncoder(w).Encode(map[string]any{"code": "99", "desc": "internal error"})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"code": "00",
			"desc": "success",
			"data": map[string]any{
				"paymentLinkId": fmt.Sprintf("link-%d", req.OrderCode),
				"checkoutUrl":   fmt.Sprintf("https://pay.test/checkout/%d", req.OrderCode),
			},
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v2/payment-requests/{code}/cancel", func(w http.ResponseWriter, r *http.Request) {
		var code int64
		fmt.Sscanf(mux.Vars(r)["code"], "%d", &code)

		m.mu.Lock()
		m.cancelled = append(m.cancelled, code)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"code": "00", "desc": "success"})
	}).Methods(http.MethodPost)

	return r
}

// webhookBody builds a provider callback signed with the shared
// checksum key.
func webhookBody(t *testing.T, orderCode int64, amount int64, code string, desc string) []byte {
	t.Helper()

	data := map[string]any{
		"orderCode":           orderCode,
		"amount":              amount,
		"description":         fmt.Sprintf("Order %d", orderCode),
		"reference":           fmt.Sprintf("ref-%d", orderCode),
		"transactionDateTime": time.Now().UTC().Format("2006-01-02 15:04:05"),
		"code":                code,
		"desc":                desc,
	}

	body, err := json.Marshal(map[string]any{
		"code":      code,
		"desc":      desc,
		"data":      data,
		"signature": payos.Sign(checksumKey, data),
	})
	if err != nil {
		t.Fatalf("marshalling webhook body: %v", err)
	}

	return body
}

func postWebhook(t *testing.T, env *TestEnv, body []byte) int {
	t.Helper()

	w, err := env.Client().Post(env.URL+"/payments/payos/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("posting webhook: %v", err)
	}
	defer w.Body.Close()

	return w.StatusCode
}

type paymentTest struct {
	*TestEnv
}

func (pt *paymentTest) fetchPaymentOK(t *testing.T, paymentID string) payment.Payment {
	t.Helper()

	var pay payment.Payment
	if code := pt.request(t, http.MethodGet, "/payments/"+paymentID, nil, &pay); code != http.StatusOK {
		t.Fatalf("can't fetch payment[%s]: status code %d", paymentID, code)
	}

	return pay
}

func (pt *paymentTest) addToCartOK(t *testing.T, courseID string) {
	t.Helper()

	add := cart.ItemNew{CourseID: courseID}
	if code := pt.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusCreated {
		t.Fatalf("can't add course[%s] to cart: status code %d", courseID, code)
	}
}

func (pt *paymentTest) enrollmentCount(t *testing.T) int {
	t.Helper()

	var owned []enrollment.Owned
	if code := pt.request(t, http.MethodGet, "/enrollments", nil, &owned); code != http.StatusOK {
		t.Fatalf("can't list enrollments: status code %d", code)
	}

	return len(owned)
}

func TestPayment(t *testing.T) {
	env, err := NewTestEnv(t, "payment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	discounted := int64(90000)
	cheap := ct.createCourseOK(t, 100000, &discounted)
	extra := ct.createCourseOK(t, 50000, nil)
	third := ct.createCourseOK(t, 60000, nil)
	fourth := ct.createCourseOK(t, 80000, nil)

	pt := &paymentTest{env}

	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	// Checkout with an empty (missing) cart is rejected.
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for checkout without a cart, got %d", code)
	}

	pt.addToCartOK(t, cheap.ID)
	pt.addToCartOK(t, extra.ID)

	var pay payment.Payment
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, &pay); code != http.StatusCreated {
		t.Fatalf("can't create checkout: status code %d", code)
	}
	if !pay.Amount.Equal(decimal.NewFromInt(140000)) {
		t.Fatalf("expected amount 140000, got %s", pay.Amount)
	}
	if pay.OrderCode == nil || pay.CheckoutURL == nil {
		t.Fatalf("expected order code and checkout url on payment %+v", pay)
	}
	if got := env.Payos.Created(); len(got) != 1 || got[0] != *pay.OrderCode {
		t.Fatalf("expected provider session for order[%d], got %v", *pay.OrderCode, got)
	}

	// The cart survives checkout creation; it empties on settlement.
	var crt cart.Cart
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 2 {
		t.Fatalf("expected cart untouched by checkout, got %d items", len(crt.Items))
	}

	// Tampered payload.
	bad := webhookBody(t, *pay.OrderCode, 140000, "00", "success")
	bad = bytes.Replace(bad, []byte("140000"), []byte("999999"), 1)
	if code := postWebhook(t, env, bad); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered webhook, got %d", code)
	}

	// Unknown order code.
	unknown := webhookBody(t, *pay.OrderCode+1, 140000, "00", "success")
	if code := postWebhook(t, env, unknown); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order code, got %d", code)
	}

	// Malformed callback without a data object.
	if code := postWebhook(t, env, []byte(`{"code":"00","desc":"success","signature":"x"}`)); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for callback without data, got %d", code)
	}

	if got := pt.fetchPaymentOK(t, pay.ID); got.Status != payment.Pending {
		t.Fatalf("expected payment untouched by rejected callbacks, got status %s", got.Status)
	}

	// Settlement.
	ok := webhookBody(t, *pay.OrderCode, 140000, "00", "success")
	if code := postWebhook(t, env, ok); code != http.StatusOK {
		t.Fatalf("expected 200 for valid webhook, got %d", code)
	}

	settled := pt.fetchPaymentOK(t, pay.ID)
	if settled.Status != payment.Success {
		t.Fatalf("expected payment Success, got %s", settled.Status)
	}
	if settled.TransactionID == nil || *settled.TransactionID != fmt.Sprintf("ref-%d", *pay.OrderCode) {
		t.Fatalf("expected transaction reference on settled payment, got %v", settled.TransactionID)
	}
	if !settled.Amount.Equal(decimal.NewFromInt(140000)) {
		t.Fatalf("settlement must not rewrite the amount, got %s", settled.Amount)
	}

	if n := pt.enrollmentCount(t); n != 2 {
		t.Fatalf("expected 2 enrollments after settlement, got %d", n)
	}
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 0 {
		t.Fatalf("expected empty cart after settlement, got %d items", len(crt.Items))
	}
	if got := ct.fetchCourseOK(t, cheap.ID); got.TotalStudents != 1 {
		t.Fatalf("expected 1 student on settled course, got %d", got.TotalStudents)
	}

	// Redelivery acknowledges without repeating side effects.
	if code := postWebhook(t, env, ok); code != http.StatusOK {
		t.Fatalf("expected 200 for redelivered webhook, got %d", code)
	}
	if n := pt.enrollmentCount(t); n != 2 {
		t.Fatalf("expected redelivery to grant nothing, got %d enrollments", n)
	}
	if got := ct.fetchCourseOK(t, cheap.ID); got.TotalStudents != 1 {
		t.Fatalf("expected redelivery to leave the counter alone, got %d", got.TotalStudents)
	}

	// Owned courses can't re-enter the cart.
	add := cart.ItemNew{CourseID: cheap.ID}
	if code := env.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 adding an owned course, got %d", code)
	}

	// A success code with a foreign description settles nothing.
	pt.addToCartOK(t, third.ID)

	var pending payment.Payment
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, &pending); code != http.StatusCreated {
		t.Fatalf("can't create checkout: status code %d", code)
	}

	odd := webhookBody(t, *pending.OrderCode, 60000, "00", "processing")
	if code := postWebhook(t, env, odd); code != http.StatusOK {
		t.Fatalf("expected acknowledgement of unrecognized outcome, got %d", code)
	}
	if got := pt.fetchPaymentOK(t, pending.ID); got.Status != payment.Pending {
		t.Fatalf("expected payment to stay Pending, got %s", got.Status)
	}

	// User cancellation voids the provider session first.
	if code := env.request(t, http.MethodDelete, "/payments/"+pending.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't cancel payment: status code %d", code)
	}
	if got := env.Payos.Cancelled(); len(got) != 1 || got[0] != *pending.OrderCode {
		t.Fatalf("expected provider cancellation for order[%d], got %v", *pending.OrderCode, got)
	}
	if got := pt.fetchPaymentOK(t, pending.ID); got.Status != payment.Failed {
		t.Fatalf("expected cancelled payment Failed, got %s", got.Status)
	}
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 1 {
		t.Fatalf("expected cart kept on cancellation, got %d items", len(crt.Items))
	}

	// An enrollment granted after the item entered the cart blocks checkout.
	on := order.OrderNew{CourseID: third.ID}
	var ord order.Order
	if code := env.request(t, http.MethodPost, "/orders", on, &ord); code != http.StatusCreated {
		t.Fatalf("can't create order: status code %d", code)
	}
	up := order.StatusUp{Status: order.Completed}
	if code := env.request(t, http.MethodPatch, "/orders/"+ord.ID+"/status", up, nil); code != http.StatusOK {
		t.Fatalf("can't complete order: status code %d", code)
	}
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 checking out an owned course, got %d", code)
	}

	// Provider trouble leaves a retryable pending payment behind.
	if code := env.request(t, http.MethodDelete, "/cart", nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't clear cart: status code %d", code)
	}
	pt.addToCartOK(t, fourth.ID)

	env.Payos.FailNext()
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the provider is down, got %d", code)
	}

	var payments []payment.Payment
	if code := env.request(t, http.MethodGet, "/payments", nil, &payments); code != http.StatusOK {
		t.Fatalf("can't list payments: status code %d", code)
	}
	var stranded *payment.Payment
	for i := range payments {
		if payments[i].Status == payment.Pending && payments[i].CheckoutURL == nil {
			stranded = &payments[i]
		}
	}
	if stranded == nil {
		t.Fatal("expected a pending payment without a checkout url after provider failure")
	}

	// The retry goes through once the provider recovers.
	if code := env.request(t, http.MethodPost, "/payments/payos", nil, &pay); code != http.StatusCreated {
		t.Fatalf("can't retry checkout: status code %d", code)
	}
	if pay.CheckoutURL == nil {
		t.Fatal("expected checkout url on retried payment")
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	// Administrative cleanup removes the failed record entirely.
	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	path := "/payments/" + pending.ID + "?purge=true"
	if code := env.request(t, http.MethodDelete, path, nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't purge payment: status code %d", code)
	}
	if code := env.request(t, http.MethodGet, "/payments/"+pending.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for purged payment, got %d", code)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentManual(t *testing.T) {
	env, err := NewTestEnv(t, "payment_manual_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	discounted := int64(45000)
	first := ct.createCourseOK(t, 30000, nil)
	second := ct.createCourseOK(t, 50000, &discounted)
	third := ct.createCourseOK(t, 20000, nil)

	pt := &paymentTest{env}

	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	pt.addToCartOK(t, first.ID)
	pt.addToCartOK(t, second.ID)

	// A manual payment records the cart total without a provider session.
	pn := payment.PaymentNew{Method: "Bank Transfer"}
	var pay payment.Payment
	if code := env.request(t, http.MethodPost, "/payments", pn, &pay); code != http.StatusCreated {
		t.Fatalf("can't create payment: status code %d", code)
	}
	if !pay.Amount.Equal(decimal.NewFromInt(75000)) {
		t.Fatalf("expected amount 75000, got %s", pay.Amount)
	}
	if pay.Status != payment.Pending {
		t.Fatalf("expected fresh payment Pending, got %s", pay.Status)
	}
	if pay.OrderCode != nil || pay.CheckoutURL != nil {
		t.Fatalf("expected no provider session on manual payment %+v", pay)
	}

	var crt cart.Cart
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 2 {
		t.Fatalf("expected cart untouched by payment creation, got %d items", len(crt.Items))
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	// The override only accepts known statuses.
	bad := payment.StatusUp{Status: payment.Status("Refunded")}
	if code := env.request(t, http.MethodPatch, "/payments/"+pay.ID+"/status", bad, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}

	txID := "bank-tx-001"
	paidAt := time.Now().UTC().Truncate(time.Microsecond)
	up := payment.StatusUp{Status: payment.Success, TransactionID: &txID, PaymentDate: &paidAt}
	if code := env.request(t, http.MethodPatch, "/payments/"+pay.ID+"/status", up, nil); code != http.StatusNoContent {
		t.Fatalf("can't override payment status: status code %d", code)
	}

	settled := pt.fetchPaymentOK(t, pay.ID)
	if settled.Status != payment.Success {
		t.Fatalf("expected payment Success, got %s", settled.Status)
	}
	if !settled.Amount.Equal(decimal.NewFromInt(75000)) {
		t.Fatalf("override must not rewrite the amount, got %s", settled.Amount)
	}
	if settled.TransactionID == nil || *settled.TransactionID != txID {
		t.Fatalf("expected transaction id carried onto payment, got %v", settled.TransactionID)
	}
	if settled.PaymentDate == nil || !settled.PaymentDate.Equal(paidAt) {
		t.Fatalf("expected payment date carried onto payment, got %v", settled.PaymentDate)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	if n := pt.enrollmentCount(t); n != 2 {
		t.Fatalf("expected 2 enrollments after override, got %d", n)
	}
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 0 {
		t.Fatalf("expected empty cart after override, got %d items", len(crt.Items))
	}
	if got := ct.fetchCourseOK(t, first.ID); got.TotalStudents != 1 {
		t.Fatalf("expected 1 student on settled course, got %d", got.TotalStudents)
	}

	// A settled payment can't be cancelled back to Failed.
	if code := env.request(t, http.MethodDelete, "/payments/"+pay.ID, nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a settled payment, got %d", code)
	}
	if got := pt.fetchPaymentOK(t, pay.ID); got.Status != payment.Success {
		t.Fatalf("expected rejected cancellation to change nothing, got status %s", got.Status)
	}
	if n := pt.enrollmentCount(t); n != 2 {
		t.Fatalf("expected enrollments kept after rejected cancellation, got %d", n)
	}

	// Client-side confirmation settles a payment the same way.
	pt.addToCartOK(t, third.ID)
	if code := env.request(t, http.MethodPost, "/payments", pn, &pay); code != http.StatusCreated {
		t.Fatalf("can't create payment: status code %d", code)
	}

	odd := payment.Confirm{PaymentID: pay.ID, TransactionID: "bank-tx-002", Status: payment.Pending}
	if code := env.request(t, http.MethodPost, "/payments/confirm", odd, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 confirming back to Pending, got %d", code)
	}

	cf := payment.Confirm{PaymentID: pay.ID, TransactionID: "bank-tx-002", Status: payment.Success}
	if code := env.request(t, http.MethodPost, "/payments/confirm", cf, nil); code != http.StatusNoContent {
		t.Fatalf("can't confirm payment: status code %d", code)
	}

	confirmed := pt.fetchPaymentOK(t, pay.ID)
	if confirmed.Status != payment.Success {
		t.Fatalf("expected confirmed payment Success, got %s", confirmed.Status)
	}
	if confirmed.TransactionID == nil || *confirmed.TransactionID != "bank-tx-002" {
		t.Fatalf("expected transaction id on confirmed payment, got %v", confirmed.TransactionID)
	}
	if confirmed.PaymentDate == nil {
		t.Fatal("expected payment date stamped on confirmation")
	}
	if n := pt.enrollmentCount(t); n != 3 {
		t.Fatalf("expected 3 enrollments after confirmation, got %d", n)
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}
