package app

import (
	"errors"
	"testing"
	"time"

	"storyconnect/pkg/domain"
)

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", "")
	bob := env.signUp(t, "bob@example.com", "")

	saved := domain.Notification{
		ID:        "n-1",
		UserID:    alice.User.ID,
		BookID:    "b-1",
		ChapterID: "c-1",
		Message:   "New chapter of Nairobi Nights",
		CreatedAt: time.Now().UTC(),
	}
	if err := env.store.SaveNotification(saved); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}

	list, err := env.app.ListNotifications(alice, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 1 || list[0].Read {
		t.Fatalf("notifications = %+v, want one unread", list)
	}

	// Another user cannot mark it read.
	if err := env.app.MarkNotificationRead(bob, "n-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user mark err = %v, want ErrNotFound", err)
	}
	if err := env.app.MarkNotificationRead(alice, "n-1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	list, err = env.app.ListNotifications(alice, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 1 || !list[0].Read {
		t.Fatalf("notifications = %+v, want one read", list)
	}
	if err := env.app.MarkNotificationRead(alice, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing mark err = %v, want ErrNotFound", err)
	}
}
