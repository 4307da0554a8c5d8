package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storyconnect/pkg/domain"
	"storyconnect/pkg/queue"
	"storyconnect/pkg/store"
)

type onceConsumer struct {
	event queue.ChapterPublished
	err   error
}

func (c *onceConsumer) Consume(ctx context.Context, handler func(context.Context, queue.ChapterPublished) error) error {
	c.err = handler(ctx, c.event)
	return c.err
}

func TestFanOutNotifiesEveryFollower(t *testing.T) {
	ms := store.NewMemoryStore()
	for _, follower := range []string{"reader-1", "reader-2", "reader-3"} {
		if err := ms.SaveFollow(domain.Follow{
			FollowerID: follower,
			AuthorID:   "author-1",
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			t.Fatalf("SaveFollow: %v", err)
		}
	}

	consumer := &onceConsumer{event: queue.ChapterPublished{
		BookID:       "book-1",
		ChapterID:    "chapter-9",
		AuthorID:     "author-1",
		BookTitle:    "Nairobi Nights",
		ChapterTitle: "The Long Rains",
		Number:       9,
		PublishedAt:  time.Now().UTC(),
	}}
	n := New(consumer, ms, 2)
	if err := n.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, follower := range []string{"reader-1", "reader-2", "reader-3"} {
		notifications, err := ms.ListNotificationsByUser(follower, 10)
		if err != nil {
			t.Fatalf("ListNotificationsByUser(%s): %v", follower, err)
		}
		if len(notifications) != 1 {
			t.Fatalf("%s got %d notifications, want 1", follower, len(notifications))
		}
		got := notifications[0]
		if got.BookID != "book-1" || got.ChapterID != "chapter-9" || got.Read {
			t.Fatalf("notification = %+v", got)
		}
		if !strings.Contains(got.Message, "Nairobi Nights") || !strings.Contains(got.Message, "The Long Rains") {
			t.Fatalf("message = %q", got.Message)
		}
	}
}

func TestFanOutSkipsAuthorsWithoutFollowers(t *testing.T) {
	ms := store.NewMemoryStore()
	consumer := &onceConsumer{event: queue.ChapterPublished{
		BookID:   "book-1",
		AuthorID: "author-1",
		Number:   1,
	}}
	if err := New(consumer, ms, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) SaveNotification(domain.Notification) error {
	return errors.New("write failed")
}

func TestFanOutFailureSurfacesToQueue(t *testing.T) {
	ms := store.NewMemoryStore()
	if err := ms.SaveFollow(domain.Follow{FollowerID: "reader-1", AuthorID: "author-1"}); err != nil {
		t.Fatalf("SaveFollow: %v", err)
	}
	consumer := &onceConsumer{event: queue.ChapterPublished{
		BookID:   "book-1",
		AuthorID: "author-1",
		Number:   1,
	}}
	err := New(consumer, failingStore{ms}, 2).Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil, want the fan-out error so the event is redelivered")
	}
}
