package gate

import (
	"errors"
	"testing"

	"storyconnect/pkg/domain"
)

func previewBook() domain.Book {
	return domain.Book{
		ID:            "b1",
		AuthorID:      "author",
		Status:        domain.BookPublished,
		FreeChapters:  3,
		TotalChapters: 10,
	}
}

func chapterOf(bookID string, number int, isFree bool) domain.Chapter {
	return domain.Chapter{
		ID:     "c" + bookID,
		BookID: bookID,
		Number: number,
		IsFree: isFree,
	}
}

func TestDecideRuleOrder(t *testing.T) {
	book := previewBook()
	cases := []struct {
		name          string
		authenticated bool
		purchased     bool
		chapter       domain.Chapter
		want          Decision
	}{
		// Free chapters are readable by anyone: the threshold rule
		// precedes the sign-in check.
		{"free chapter anonymous", false, false, chapterOf("b1", 2, false), Allowed},
		{"free chapter authenticated", true, false, chapterOf("b1", 3, false), Allowed},
		{"past threshold anonymous", false, false, chapterOf("b1", 5, false), LockedNoAccount},
		{"past threshold authenticated", true, false, chapterOf("b1", 5, false), LockedPreviewOnly},
		{"purchase overrides threshold", true, true, chapterOf("b1", 7, false), Allowed},
		{"purchase overrides for chapter ten", true, true, chapterOf("b1", 10, false), Allowed},
		{"is_free flag overrides threshold", false, false, chapterOf("b1", 8, true), Allowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decide(tc.authenticated, tc.purchased, book, tc.chapter)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if got != tc.want {
				t.Fatalf("decision = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecideZeroThresholdLocksEverything(t *testing.T) {
	book := previewBook()
	book.FreeChapters = 0
	got, err := Decide(true, false, book, chapterOf("b1", 1, false))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got != LockedPreviewOnly {
		t.Fatalf("decision = %s, want locked_preview_only", got)
	}
}

func TestDecideMismatchedChapterFailsClosed(t *testing.T) {
	book := previewBook()
	if _, err := Decide(true, true, book, chapterOf("other-book", 1, true)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := Decide(true, true, book, chapterOf("b1", 0, true)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-positive chapter number: err = %v, want ErrNotFound", err)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	book := previewBook()
	chapter := chapterOf("b1", 5, false)
	first, err := Decide(true, false, book, chapter)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Decide(true, false, book, chapter)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if again != first {
			t.Fatalf("decision changed between identical calls: %s then %s", first, again)
		}
	}
}

type fakeLookups struct {
	books     map[string]domain.Book
	chapters  map[string]map[int]domain.Chapter
	purchases map[string]bool
	purchErr  error
}

func (f *fakeLookups) GetBook(id string) (domain.Book, bool, error) {
	b, ok := f.books[id]
	return b, ok, nil
}

func (f *fakeLookups) GetChapterByNumber(bookID string, number int) (domain.Chapter, bool, error) {
	c, ok := f.chapters[bookID][number]
	return c, ok, nil
}

func (f *fakeLookups) HasPurchase(userID, bookID string) (bool, error) {
	if f.purchErr != nil {
		return false, f.purchErr
	}
	return f.purchases[userID+"/"+bookID], nil
}

func newFakeLookups() *fakeLookups {
	book := previewBook()
	chapters := make(map[int]domain.Chapter)
	for n := 1; n <= book.TotalChapters; n++ {
		chapters[n] = domain.Chapter{ID: "c" + string(rune('0'+n)), BookID: book.ID, Number: n}
	}
	return &fakeLookups{
		books:     map[string]domain.Book{book.ID: book},
		chapters:  map[string]map[int]domain.Chapter{book.ID: chapters},
		purchases: make(map[string]bool),
	}
}

func TestEvaluateMissingChapterNeverAllowed(t *testing.T) {
	svc := NewService(newFakeLookups())
	if _, _, err := svc.Evaluate("u1", "b1", 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chapter: err = %v, want ErrNotFound", err)
	}
	if _, _, err := svc.Evaluate("u1", "no-such-book", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing book: err = %v, want ErrNotFound", err)
	}
}

func TestEvaluatePurchaseGrantsFullBook(t *testing.T) {
	lookups := newFakeLookups()
	lookups.purchases["u1/b1"] = true
	svc := NewService(lookups)

	decision, chapter, err := svc.Evaluate("u1", "b1", 7)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision != Allowed {
		t.Fatalf("decision = %s, want allowed", decision)
	}
	if chapter.Number != 7 {
		t.Fatalf("chapter number = %d, want 7", chapter.Number)
	}
}

func TestEvaluatePurchaseErrorNarrowsAccess(t *testing.T) {
	lookups := newFakeLookups()
	lookups.purchases["u1/b1"] = true
	lookups.purchErr = errors.New("store unavailable")
	svc := NewService(lookups)

	// Paid chapter degrades to locked when the purchase check fails.
	decision, _, err := svc.Evaluate("u1", "b1", 7)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision != LockedPreviewOnly {
		t.Fatalf("decision = %s, want locked_preview_only", decision)
	}

	// Free chapters stay readable regardless.
	decision, _, err = svc.Evaluate("u1", "b1", 2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision != Allowed {
		t.Fatalf("free chapter decision = %s, want allowed", decision)
	}
}

func TestEvaluateAnonymous(t *testing.T) {
	svc := NewService(newFakeLookups())
	decision, _, err := svc.Evaluate("", "b1", 5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision != LockedNoAccount {
		t.Fatalf("decision = %s, want locked_no_account", decision)
	}
}
