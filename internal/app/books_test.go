package app

import (
	"context"
	"errors"
	"testing"

	"storyconnect/pkg/domain"
	"storyconnect/pkg/gate"
)

// seedPublishedBook seeds a writer, a published book with the given
// free preview threshold, and chapters numbered from 1.
func seedPublishedBook(t *testing.T, env *testEnv, freeChapters, chapters int) (string, string) {
	t.Helper()
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")
	book, err := env.app.CreateBook(writer, BookInput{Title: "Nairobi Nights", Price: 350})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	for n := 1; n <= chapters; n++ {
		if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{
			Number:  n,
			Title:   "Chapter",
			Content: "body",
		}); err != nil {
			t.Fatalf("AddChapter(%d): %v", n, err)
		}
	}
	if freeChapters > 0 {
		if _, err := env.app.UpdateBook(writer, book.ID, BookInput{
			Title:        book.Title,
			Price:        book.Price,
			FreeChapters: freeChapters,
		}); err != nil {
			t.Fatalf("UpdateBook: %v", err)
		}
	}
	if _, err := env.app.PublishBook(ctx, writer, book.ID); err != nil {
		t.Fatalf("PublishBook: %v", err)
	}
	return writer.User.ID, book.ID
}

func TestCreateBookRequiresWriter(t *testing.T) {
	env := newTestEnv(t)
	reader := env.signUp(t, "reader@example.com", "")
	if _, err := env.app.CreateBook(reader, BookInput{Title: "Nope"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reader CreateBook err = %v, want ErrForbidden", err)
	}
}

func TestFreePreviewBoundedByChapterCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")

	// A new book has no chapters, so a nonzero preview is rejected.
	if _, err := env.app.CreateBook(writer, BookInput{Title: "X", FreeChapters: 3}); !errors.Is(err, ErrFreePreviewTooLarge) {
		t.Fatalf("create err = %v, want ErrFreePreviewTooLarge", err)
	}
	book, err := env.app.CreateBook(writer, BookInput{Title: "X", Price: 100})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	for n := 1; n <= 2; n++ {
		if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: n, Title: "Ch", Content: "b"}); err != nil {
			t.Fatalf("AddChapter: %v", err)
		}
	}
	if _, err := env.app.UpdateBook(writer, book.ID, BookInput{Title: "X", Price: 100, FreeChapters: 3}); !errors.Is(err, ErrFreePreviewTooLarge) {
		t.Fatalf("update err = %v, want ErrFreePreviewTooLarge", err)
	}
	updated, err := env.app.UpdateBook(writer, book.ID, BookInput{Title: "X", Price: 100, FreeChapters: 2})
	if err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	if updated.TotalChapters != 2 || updated.FreeChapters != 2 {
		t.Fatalf("book = %d total / %d free, want 2/2", updated.TotalChapters, updated.FreeChapters)
	}

	// Deleting a chapter clamps the threshold back down.
	chapters, err := env.store.ListChapters(book.ID)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if err := env.app.DeleteChapter(writer, book.ID, chapters[1].ID); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	got, err := env.app.GetBook(writer, book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.TotalChapters != 1 || got.FreeChapters != 1 {
		t.Fatalf("book = %d total / %d free after delete, want 1/1", got.TotalChapters, got.FreeChapters)
	}
}

func TestBookLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")
	outsider := env.signUp(t, "other@example.com", "writer")

	book, err := env.app.CreateBook(writer, BookInput{Title: "Draft", Price: 200})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if book.Status != domain.BookDraft {
		t.Fatalf("status = %s, want draft", book.Status)
	}

	// Drafts are invisible to everyone but the author and admins.
	if _, err := env.app.GetBook(outsider, book.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("outsider GetBook err = %v, want ErrNotFound", err)
	}
	if _, err := env.app.PublishBook(ctx, outsider, book.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider PublishBook err = %v, want ErrForbidden", err)
	}

	published, err := env.app.PublishBook(ctx, writer, book.ID)
	if err != nil {
		t.Fatalf("PublishBook: %v", err)
	}
	if published.Status != domain.BookPublished || published.PublishedAt == nil {
		t.Fatalf("published = %+v, want status published with timestamp", published)
	}
	// Nothing to announce when the book has no chapters yet.
	if got := env.publisher.published(); len(got) != 0 {
		t.Fatalf("chapterless publish announced: %v", got)
	}

	catalog, err := env.app.ListPublishedBooks()
	if err != nil {
		t.Fatalf("ListPublishedBooks: %v", err)
	}
	if len(catalog) != 1 || catalog[0].ID != book.ID {
		t.Fatalf("catalog = %v, want the published book", catalog)
	}

	archived, err := env.app.ArchiveBook(ctx, writer, book.ID)
	if err != nil {
		t.Fatalf("ArchiveBook: %v", err)
	}
	if archived.Status != domain.BookArchived {
		t.Fatalf("status = %s, want archived", archived.Status)
	}
	catalog, err = env.app.ListPublishedBooks()
	if err != nil {
		t.Fatalf("ListPublishedBooks: %v", err)
	}
	if len(catalog) != 0 {
		t.Fatalf("archived book still listed: %v", catalog)
	}
}

func TestGatedChapterRead(t *testing.T) {
	env := newTestEnv(t)
	_, bookID := seedPublishedBook(t, env, 2, 5)
	reader := env.signUp(t, "reader@example.com", "")
	buyer := env.signUp(t, "buyer@example.com", "")
	if err := env.store.SavePurchase(domain.Purchase{
		ID: "p-1", UserID: buyer.User.ID, BookID: bookID, Amount: 350, PaymentMethod: "stripe",
	}); err != nil {
		t.Fatalf("SavePurchase: %v", err)
	}

	tests := []struct {
		name    string
		userID  string
		number  int
		want    gate.Decision
		wantErr error
	}{
		{name: "anonymous free chapter", userID: "", number: 2, want: gate.Allowed},
		{name: "anonymous locked chapter", userID: "", number: 3, want: gate.LockedNoAccount},
		{name: "signed-in locked chapter", userID: reader.User.ID, number: 3, want: gate.LockedPreviewOnly},
		{name: "buyer reads anything", userID: buyer.User.ID, number: 5, want: gate.Allowed},
		{name: "missing chapter", userID: buyer.User.ID, number: 99, wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := env.app.ReadChapter(tt.userID, bookID, tt.number)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadChapter err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadChapter: %v", err)
			}
			if view.Decision != tt.want {
				t.Fatalf("decision = %s, want %s", view.Decision, tt.want)
			}
			if tt.want == gate.Allowed && view.Chapter.Content == "" {
				t.Fatal("allowed read returned no content")
			}
			if tt.want != gate.Allowed && view.Chapter.Content != "" {
				t.Fatal("locked read leaked chapter content")
			}
		})
	}
}

func TestListChaptersNeverLeaksContent(t *testing.T) {
	env := newTestEnv(t)
	_, bookID := seedPublishedBook(t, env, 1, 3)

	summaries, err := env.app.ListChapters("", bookID)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries, want 3", len(summaries))
	}
	if summaries[0].Decision != gate.Allowed {
		t.Fatalf("chapter 1 = %s, want allowed", summaries[0].Access)
	}
	if summaries[2].Decision != gate.LockedNoAccount {
		t.Fatalf("chapter 3 = %s, want locked_no_account", summaries[2].Access)
	}
}

func TestChapterNumbersUniqueAndPositive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")
	book, err := env.app.CreateBook(writer, BookInput{Title: "X"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: 0, Title: "Ch"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero number err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: 1, Title: "Ch"}); err != nil {
		t.Fatalf("AddChapter: %v", err)
	}
	if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: 1, Title: "Again"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate number err = %v, want ErrInvalidInput", err)
	}
}

func TestPublishedChapterAnnounced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writer := env.signUp(t, "author@example.com", "writer")
	book, err := env.app.CreateBook(writer, BookInput{Title: "Serial", Price: 100})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	// Draft chapters are silent.
	if _, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: 1, Title: "One", Content: "b"}); err != nil {
		t.Fatalf("AddChapter: %v", err)
	}
	if got := env.publisher.published(); len(got) != 0 {
		t.Fatalf("draft chapter announced: %v", got)
	}

	// Publishing the book announces the latest chapter already written.
	if _, err := env.app.PublishBook(ctx, writer, book.ID); err != nil {
		t.Fatalf("PublishBook: %v", err)
	}
	events := env.publisher.published()
	if len(events) != 1 {
		t.Fatalf("got %d events after publish, want 1", len(events))
	}
	if ev := events[0]; ev.BookID != book.ID || ev.Number != 1 {
		t.Fatalf("publish event = %+v, want chapter 1", ev)
	}

	chapter, err := env.app.AddChapter(ctx, writer, book.ID, ChapterInput{Number: 2, Title: "Two", Content: "b"})
	if err != nil {
		t.Fatalf("AddChapter: %v", err)
	}
	events = env.publisher.published()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	ev := events[1]
	if ev.BookID != book.ID || ev.ChapterID != chapter.ID || ev.AuthorID != writer.User.ID || ev.Number != 2 {
		t.Fatalf("event = %+v", ev)
	}
}
