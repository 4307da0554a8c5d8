package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *RedisEventQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q, err := NewRedisEventQueue(client, EventQueueConfig{
		Stream:   "chapters.published",
		Group:    "notifier",
		Consumer: "test",
		Block:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestRedisEventQueueDeliversEvent(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	published := ChapterPublished{
		BookID:       "b1",
		ChapterID:    "c1",
		AuthorID:     "a1",
		BookTitle:    "The Long Rain",
		ChapterTitle: "Landfall",
		Number:       7,
		PublishedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := q.Publish(ctx, published); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var mu sync.Mutex
	var got []ChapterPublished
	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(consumeCtx, func(_ context.Context, event ChapterPublished) error {
			mu.Lock()
			got = append(got, event)
			mu.Unlock()
			stop()
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	if got[0] != published {
		t.Fatalf("event mismatch:\n got %+v\nwant %+v", got[0], published)
	}
}

func TestRedisEventQueueRejectsIncompleteEvent(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Publish(context.Background(), ChapterPublished{BookID: "b1"}); err == nil {
		t.Fatalf("expected error for missing chapter id")
	}
}

func TestRedisEventQueueLeavesFailedEventPending(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.Publish(ctx, ChapterPublished{BookID: "b1", ChapterID: "c1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	attempts := 0
	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(consumeCtx, func(_ context.Context, _ ChapterPublished) error {
			attempts++
			stop()
			return errors.New("boom")
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("timed out waiting for handler")
	}
	if attempts != 1 {
		t.Fatalf("expected one attempt, got %d", attempts)
	}

	// The message was not acked, so it is still pending for the group.
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected one pending message, got %d", pending.Count)
	}
}
