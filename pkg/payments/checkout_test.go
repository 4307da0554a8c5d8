package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func checkoutTestServer(t *testing.T, existingCustomer string, captured *map[string][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/customers":
			data := []map[string]string{}
			if existingCustomer != "" {
				data = append(data, map[string]string{"id": existingCustomer})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			*captured = r.PostForm
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":  "cs_test_123",
				"url": "https://checkout.example/pay/cs_test_123",
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestStripeClientCreatesSession(t *testing.T) {
	var form map[string][]string
	srv := checkoutTestServer(t, "", &form)
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test")
	session, err := client.CreateSession(context.Background(), CheckoutParams{
		UserID:        "u1",
		CustomerEmail: "reader@example.com",
		BookID:        "b1",
		BookTitle:     "The Long Rain",
		Price:         350,
		Origin:        "https://pixelprose.example",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "cs_test_123" || session.URL == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	checks := map[string]string{
		"customer_email":                         "reader@example.com",
		"mode":                                   "payment",
		"line_items[0][price_data][currency]":    Currency,
		"line_items[0][price_data][unit_amount]": "35000",
		"success_url":                            "https://pixelprose.example/book/b1?purchase=success",
		"metadata[book_id]":                      "b1",
		"metadata[user_id]":                      "u1",
	}
	for key, want := range checks {
		if got := formValue(form, key); got != want {
			t.Errorf("form[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestStripeClientReusesExistingCustomer(t *testing.T) {
	var form map[string][]string
	srv := checkoutTestServer(t, "cus_42", &form)
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test")
	if _, err := client.CreateSession(context.Background(), CheckoutParams{
		UserID:        "u1",
		CustomerEmail: "reader@example.com",
		BookID:        "b1",
		BookTitle:     "The Long Rain",
		Price:         100,
		Origin:        "https://pixelprose.example",
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if got := formValue(form, "customer"); got != "cus_42" {
		t.Errorf("expected existing customer to be reused, got %q", got)
	}
	if got := formValue(form, "customer_email"); got != "" {
		t.Errorf("customer_email should be omitted when customer is set, got %q", got)
	}
}

func TestStripeClientValidatesParams(t *testing.T) {
	client := NewStripeClient("http://invalid.local", "sk_test")
	if _, err := client.CreateSession(context.Background(), CheckoutParams{BookID: "b1"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func formValue(form map[string][]string, key string) string {
	vals := form[key]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
