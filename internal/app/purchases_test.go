package app

import (
	"context"
	"errors"
	"testing"
)

func TestCreateCheckoutRecordsPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, bookID := seedPublishedBook(t, env, 1, 3)
	buyer := env.signUp(t, "buyer@example.com", "")

	session, err := env.app.CreateCheckout(ctx, buyer, bookID)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if session.URL == "" {
		t.Fatal("session has no redirect URL")
	}
	if len(env.checkout.params) != 1 {
		t.Fatalf("checkout called %d times, want 1", len(env.checkout.params))
	}
	params := env.checkout.params[0]
	if params.UserID != buyer.User.ID || params.BookID != bookID || params.Price != 350 {
		t.Fatalf("params = %+v", params)
	}
	if params.Origin != "https://app.test" {
		t.Fatalf("origin = %s", params.Origin)
	}

	purchases, err := env.app.ListMyPurchases(buyer)
	if err != nil {
		t.Fatalf("ListMyPurchases: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("got %d purchases, want 1", len(purchases))
	}
	p := purchases[0]
	if p.TransactionID != session.ID || p.Amount != 350 || p.PaymentMethod != "stripe" {
		t.Fatalf("purchase = %+v", p)
	}

	owned, err := env.app.HasPurchased(buyer, bookID)
	if err != nil || !owned {
		t.Fatalf("HasPurchased = %v, %v; want true", owned, err)
	}
	if _, err := env.app.CreateCheckout(ctx, buyer, bookID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("second checkout err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateCheckoutRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")
	buyer := env.signUp(t, "buyer@example.com", "")

	draft, err := env.app.CreateBook(writer, BookInput{Title: "Draft", Price: 100})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if _, err := env.app.CreateCheckout(ctx, buyer, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft checkout err = %v, want ErrNotFound", err)
	}

	free, err := env.app.CreateBook(writer, BookInput{Title: "Free"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if _, err := env.app.PublishBook(ctx, writer, free.ID); err != nil {
		t.Fatalf("PublishBook: %v", err)
	}
	if _, err := env.app.CreateCheckout(ctx, buyer, free.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("free book checkout err = %v, want ErrInvalidInput", err)
	}
}
