package app

import (
	"errors"
	"strings"
	"testing"

	"storyconnect/pkg/ai"
)

func TestSubmitReviewUpserts(t *testing.T) {
	env := newTestEnv(t)
	_, bookID := seedPublishedBook(t, env, 1, 2)
	reader := env.signUp(t, "reader@example.com", "")

	if _, err := env.app.SubmitReview(reader, bookID, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("rating 0 err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.app.SubmitReview(reader, bookID, 6, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("rating 6 err = %v, want ErrInvalidInput", err)
	}

	first, err := env.app.SubmitReview(reader, bookID, 4, "solid")
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	second, err := env.app.SubmitReview(reader, bookID, 2, "changed my mind")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("resubmitting created a second review")
	}
	reviews, err := env.app.ListReviews(bookID)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 2 {
		t.Fatalf("reviews = %+v, want one review with rating 2", reviews)
	}
}

func TestBlogPostDerivedFields(t *testing.T) {
	env := newTestEnv(t)
	writer := env.signUp(t, "author@example.com", "writer")
	reader := env.signUp(t, "reader@example.com", "")

	if _, err := env.app.CreateBlogPost(reader, BlogPostInput{Title: "No", Content: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reader CreateBlogPost err = %v, want ErrForbidden", err)
	}

	content := "<h1>On Serial Fiction</h1><p>" + strings.Repeat("word ", 450) + "</p><script>alert(1)</script>"
	post, err := env.app.CreateBlogPost(writer, BlogPostInput{Title: "On Serial Fiction", Category: "craft", Content: content})
	if err != nil {
		t.Fatalf("CreateBlogPost: %v", err)
	}
	if strings.Contains(post.Excerpt, "<") || strings.Contains(post.Excerpt, "alert") {
		t.Fatalf("excerpt leaked markup: %q", post.Excerpt)
	}
	if !strings.HasPrefix(post.Excerpt, "On Serial Fiction word") {
		t.Fatalf("excerpt = %q", post.Excerpt)
	}
	// 453 visible words at 200 wpm rounds up to 3 minutes.
	if post.ReadMinutes != 3 {
		t.Fatalf("read minutes = %d, want 3", post.ReadMinutes)
	}
	if post.PublishedAt == nil {
		t.Fatal("post has no publication time")
	}
}

func TestDiscussionFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com", "")
	bob := env.signUp(t, "bob@example.com", "")

	thread, err := env.app.CreateDiscussion(alice, DiscussionInput{Category: "general", Title: "Favorite genre?", Content: "Go."})
	if err != nil {
		t.Fatalf("CreateDiscussion: %v", err)
	}
	got, err := env.app.GetDiscussion(thread.ID)
	if err != nil {
		t.Fatalf("GetDiscussion: %v", err)
	}
	if got.Views != 1 {
		t.Fatalf("views = %d, want 1", got.Views)
	}
	liked, err := env.app.LikeDiscussion(bob, thread.ID)
	if err != nil {
		t.Fatalf("LikeDiscussion: %v", err)
	}
	if liked.Likes != 1 {
		t.Fatalf("likes = %d, want 1", liked.Likes)
	}
	if _, err := env.app.ReplyToDiscussion(bob, thread.ID, "Mystery."); err != nil {
		t.Fatalf("ReplyToDiscussion: %v", err)
	}
	replies, err := env.app.ListReplies(thread.ID)
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if len(replies) != 1 || replies[0].AuthorID != bob.User.ID {
		t.Fatalf("replies = %+v", replies)
	}
	if _, err := env.app.ReplyToDiscussion(bob, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reply to missing thread err = %v, want ErrNotFound", err)
	}
}

func TestFounderAdministration(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "admin@example.com", "")
	admin = env.grantAdmin(t, admin.User.ID)
	reader := env.signUp(t, "reader@example.com", "")

	if _, err := env.app.SaveFounder(reader, "", FounderInput{Name: "Eve"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin SaveFounder err = %v, want ErrForbidden", err)
	}
	second, err := env.app.SaveFounder(admin, "", FounderInput{Name: "Second", OrderIndex: 2})
	if err != nil {
		t.Fatalf("SaveFounder: %v", err)
	}
	if _, err := env.app.SaveFounder(admin, "", FounderInput{Name: "First", OrderIndex: 1}); err != nil {
		t.Fatalf("SaveFounder: %v", err)
	}
	founders, err := env.app.ListFounders()
	if err != nil {
		t.Fatalf("ListFounders: %v", err)
	}
	if len(founders) != 2 || founders[0].Name != "First" {
		t.Fatalf("founders = %+v, want display order by index", founders)
	}
	if _, err := env.app.SaveFounder(admin, second.ID, FounderInput{Name: "Second", Role: "CTO", OrderIndex: 2}); err != nil {
		t.Fatalf("update founder: %v", err)
	}
	if err := env.app.DeleteFounder(admin, second.ID); err != nil {
		t.Fatalf("DeleteFounder: %v", err)
	}
}

func TestAssistCapabilityAndErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	writer := env.signUp(t, "author@example.com", "writer")
	reader := env.signUp(t, "reader@example.com", "")
	ctx := t.Context()

	if _, err := env.app.Assist(ctx, reader, ai.ModeGeneral, "help"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reader Assist err = %v, want ErrForbidden", err)
	}
	reply, err := env.app.Assist(ctx, writer, ai.ModeContinue, "the story so far")
	if err != nil {
		t.Fatalf("Assist: %v", err)
	}
	if reply != "assistant says hi" {
		t.Fatalf("reply = %q", reply)
	}
	if _, err := env.app.Assist(ctx, writer, ai.ModeGeneral, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty prompt err = %v, want ErrInvalidInput", err)
	}

	env.generator.err = ai.ErrRateLimited
	if _, err := env.app.Assist(ctx, writer, ai.ModeGeneral, "help"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("throttled err = %v, want ErrRateLimited", err)
	}
	env.generator.err = ai.ErrQuotaExhausted
	if _, err := env.app.Assist(ctx, writer, ai.ModeGeneral, "help"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("quota err = %v, want ErrRateLimited", err)
	}
}
