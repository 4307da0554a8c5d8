// Package notifier turns chapter publication events into per-reader
// notifications. It runs as its own process so a slow fan-out never
// blocks the API server.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"storyconnect/internal/util"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/queue"
)

// Consumer is the slice of the event queue the notifier needs.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, queue.ChapterPublished) error) error
}

// Store is the slice of persistence the notifier needs.
type Store interface {
	ListFollowers(authorID string) ([]domain.Follow, error)
	SaveNotification(domain.Notification) error
}

// Notifier fans one publication event out to every follower of the
// author.
type Notifier struct {
	consumer Consumer
	store    Store
	workers  int
}

// New builds a notifier. workers caps the concurrent notification
// writes per event; zero means 8.
func New(consumer Consumer, store Store, workers int) *Notifier {
	if workers <= 0 {
		workers = 8
	}
	return &Notifier{consumer: consumer, store: store, workers: workers}
}

// Run consumes events until the context is canceled. A failed fan-out
// is reported back to the queue so the event is redelivered.
func (n *Notifier) Run(ctx context.Context) error {
	return n.consumer.Consume(ctx, n.handle)
}

func (n *Notifier) handle(ctx context.Context, event queue.ChapterPublished) error {
	followers, err := n.store.ListFollowers(event.AuthorID)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}
	if len(followers) == 0 {
		return nil
	}

	message := fmt.Sprintf("Chapter %d of %q is out: %s", event.Number, event.BookTitle, event.ChapterTitle)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for _, follow := range followers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			notification := domain.Notification{
				ID:        util.NewID(),
				UserID:    follow.FollowerID,
				BookID:    event.BookID,
				ChapterID: event.ChapterID,
				Message:   message,
				CreatedAt: time.Now().UTC(),
			}
			if err := n.store.SaveNotification(notification); err != nil {
				return fmt.Errorf("notify %s: %w", follow.FollowerID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("notification fan-out failed", "book_id", event.BookID, "err", err)
		return err
	}
	return nil
}
