package test

import (
	"net/http"
	"testing"

	"github.com/elearnhub/elearn-api/core/cart"
	"github.com/elearnhub/elearn-api/core/user"
)

func TestCart(t *testing.T) {
	env, err := NewTestEnv(t, "cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	first := ct.createCourseOK(t, 50000, nil)
	second := ct.createCourseOK(t, 75000, nil)

	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	var me user.User
	if code := env.request(t, http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("can't fetch current user: status code %d", code)
	}
	if me.Email != env.UserEmail {
		t.Fatalf("expected current user %s, got %s", env.UserEmail, me.Email)
	}

	// No cart exists before the first item is added.
	if code := env.request(t, http.MethodGet, "/cart", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing cart, got %d", code)
	}

	// Clearing with no cart at all is a no-op.
	if code := env.request(t, http.MethodDelete, "/cart", nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204 clearing a missing cart, got %d", code)
	}

	add := cart.ItemNew{CourseID: first.ID}
	if code := env.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusCreated {
		t.Fatalf("can't add course to cart: status code %d", code)
	}

	if code := env.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate cart item, got %d", code)
	}

	add = cart.ItemNew{CourseID: second.ID}
	if code := env.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusCreated {
		t.Fatalf("can't add second course to cart: status code %d", code)
	}

	add = cart.ItemNew{CourseID: "4a973e00-0b7e-4df5-bf51-b46e11e0cbe3"}
	if code := env.request(t, http.MethodPost, "/cart/items", add, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown course, got %d", code)
	}

	var crt cart.Cart
	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 2 {
		t.Fatalf("expected 2 cart items, got %d", len(crt.Items))
	}

	path := "/cart/items/4a973e00-0b7e-4df5-bf51-b46e11e0cbe3"
	if code := env.request(t, http.MethodDelete, path, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 removing absent item, got %d", code)
	}

	if code := env.request(t, http.MethodDelete, "/cart/items/"+first.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't remove cart item: status code %d", code)
	}

	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 1 || crt.Items[0].CourseID != second.ID {
		t.Fatalf("expected only course[%s] left in cart", second.ID)
	}

	if code := env.request(t, http.MethodDelete, "/cart", nil, nil); code != http.StatusNoContent {
		t.Fatalf("can't clear cart: status code %d", code)
	}

	if code := env.request(t, http.MethodGet, "/cart", nil, &crt); code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	if len(crt.Items) != 0 {
		t.Fatalf("expected empty cart after clear, got %d items", len(crt.Items))
	}

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}
