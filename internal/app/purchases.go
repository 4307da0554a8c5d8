package app

import (
	"context"
	"fmt"
	"time"

	"storyconnect/internal/util"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/payments"
)

// CreateCheckout opens a hosted checkout session for a published book
// and records the purchase against the session. The purchase row is
// written as soon as the session exists; the redirect back to the
// book page carries the payment outcome.
func (a *App) CreateCheckout(ctx context.Context, caller authz.Identity, bookID string) (payments.CheckoutSession, error) {
	if !caller.Authenticated() {
		return payments.CheckoutSession{}, ErrForbidden
	}
	if a.checkout == nil {
		return payments.CheckoutSession{}, fmt.Errorf("%w: payments not configured", ErrInvalidInput)
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Status != domain.BookPublished {
		return payments.CheckoutSession{}, ErrNotFound
	}
	if book.Price <= 0 {
		return payments.CheckoutSession{}, fmt.Errorf("%w: book is free", ErrInvalidInput)
	}
	if purchased, err := a.store.HasPurchase(caller.User.ID, bookID); err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("check purchase: %w", err)
	} else if purchased {
		return payments.CheckoutSession{}, fmt.Errorf("%w: book already purchased", ErrInvalidInput)
	}

	session, err := a.checkout.CreateSession(ctx, payments.CheckoutParams{
		UserID:        caller.User.ID,
		CustomerEmail: caller.User.Email,
		BookID:        book.ID,
		BookTitle:     book.Title,
		Price:         book.Price,
		Origin:        a.checkoutOrigin,
	})
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}

	purchase := domain.Purchase{
		ID:            util.NewID(),
		UserID:        caller.User.ID,
		BookID:        book.ID,
		Amount:        book.Price,
		PaymentMethod: "stripe",
		TransactionID: session.ID,
		PurchasedAt:   time.Now().UTC(),
	}
	if err := a.store.SavePurchase(purchase); err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("record purchase: %w", err)
	}
	return session, nil
}

// HasPurchased reports whether the caller owns the book.
func (a *App) HasPurchased(caller authz.Identity, bookID string) (bool, error) {
	if !caller.Authenticated() {
		return false, nil
	}
	return a.store.HasPurchase(caller.User.ID, bookID)
}

// ListMyPurchases returns the caller's purchase history.
func (a *App) ListMyPurchases(caller authz.Identity) ([]domain.Purchase, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	return a.store.ListPurchasesByUser(caller.User.ID)
}
