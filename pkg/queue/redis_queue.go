// Package queue carries chapter publication events from the API to the
// notifier worker over a Redis stream.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChapterPublished is emitted when an author publishes a new chapter
// of a published book.
type ChapterPublished struct {
	BookID       string
	ChapterID    string
	AuthorID     string
	BookTitle    string
	ChapterTitle string
	Number       int
	PublishedAt  time.Time
}

// Publisher emits chapter publication events.
type Publisher interface {
	Publish(ctx context.Context, event ChapterPublished) error
}

// EventQueueConfig tunes the Redis stream consumer.
type EventQueueConfig struct {
	Stream     string
	Group      string
	Consumer   string
	Block      time.Duration
	ClaimIdle  time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

// RedisEventQueue is a stream-backed event queue with a consumer
// group, so multiple notifier instances share the work.
type RedisEventQueue struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	block      time.Duration
	claimIdle  time.Duration
	maxLen     int64
	readCount  int64
	claimCount int64
	once       sync.Once
}

func NewRedisEventQueue(client *redis.Client, cfg EventQueueConfig) (*RedisEventQueue, error) {
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "notifier"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}
	return &RedisEventQueue{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		block:      block,
		claimIdle:  claimIdle,
		maxLen:     maxLen,
		readCount:  readCount,
		claimCount: claimCount,
	}, nil
}

// Publish appends the event to the stream.
func (q *RedisEventQueue) Publish(ctx context.Context, event ChapterPublished) error {
	if event.BookID == "" || event.ChapterID == "" {
		return errors.New("book id and chapter id required")
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"book_id":       event.BookID,
			"chapter_id":    event.ChapterID,
			"author_id":     event.AuthorID,
			"book_title":    event.BookTitle,
			"chapter_title": event.ChapterTitle,
			"number":        strconv.Itoa(event.Number),
			"published_at":  event.PublishedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// Consume reads events until the context ends. Handler errors leave
// the message pending so another consumer can claim it after the idle
// window.
func (q *RedisEventQueue) Consume(ctx context.Context, handler func(context.Context, ChapterPublished) error) error {
	q.ensureGroup(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if msgs, err := q.claimPending(ctx); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if err == redis.Nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			slog.Warn("queue read failed", "stream", q.stream, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisEventQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("queue group create failed", "stream", q.stream, "error", err)
		}
	})
}

func (q *RedisEventQueue) claimPending(ctx context.Context) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return res, err
}

func (q *RedisEventQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, ChapterPublished) error) {
	event, ok := decodeEvent(msg)
	if !ok {
		// Malformed entries are dropped, retrying cannot fix them.
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, event); err != nil {
		slog.Warn("event handler failed", "stream", q.stream, "book", event.BookID, "error", err)
		return
	}
	q.ackAndDel(ctx, msg.ID)
}

func (q *RedisEventQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func decodeEvent(msg redis.XMessage) (ChapterPublished, bool) {
	event := ChapterPublished{}
	event.BookID, _ = msg.Values["book_id"].(string)
	event.ChapterID, _ = msg.Values["chapter_id"].(string)
	event.AuthorID, _ = msg.Values["author_id"].(string)
	event.BookTitle, _ = msg.Values["book_title"].(string)
	event.ChapterTitle, _ = msg.Values["chapter_title"].(string)
	if raw, _ := msg.Values["number"].(string); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			event.Number = n
		}
	}
	if raw, _ := msg.Values["published_at"].(string); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			event.PublishedAt = t
		}
	}
	return event, event.BookID != "" && event.ChapterID != ""
}
