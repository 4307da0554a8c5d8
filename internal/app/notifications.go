package app

import (
	"errors"
	"fmt"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/store"
)

// ListNotifications returns the caller's most recent notifications.
func (a *App) ListNotifications(caller authz.Identity, limit int) ([]domain.Notification, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return a.store.ListNotificationsByUser(caller.User.ID, limit)
}

// MarkNotificationRead marks one of the caller's notifications read.
func (a *App) MarkNotificationRead(caller authz.Identity, notificationID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if err := a.store.MarkNotificationRead(notificationID, caller.User.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
