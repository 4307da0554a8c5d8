package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyconnect/internal/util"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/gate"
	"storyconnect/pkg/queue"
)

// ChapterInput carries writer-editable chapter fields.
type ChapterInput struct {
	Number  int
	Title   string
	Content string
	IsFree  bool
}

// ChapterSummary is a catalog entry for one chapter. Content is never
// included; callers go through ReadChapter for that.
type ChapterSummary struct {
	ID       string        `json:"id"`
	Number   int           `json:"number"`
	Title    string        `json:"title"`
	IsFree   bool          `json:"isFree"`
	Decision gate.Decision `json:"-"`
	Access   string        `json:"access"`
}

// ChapterView is the result of a gated read. Chapter is zero unless
// the decision is Allowed.
type ChapterView struct {
	Decision gate.Decision
	Chapter  domain.Chapter
}

// AddChapter appends a chapter to a book owned by the caller. Numbers
// are positive and unique per book. When the book is already
// published the new chapter is announced to followers.
func (a *App) AddChapter(ctx context.Context, caller authz.Identity, bookID string, input ChapterInput) (domain.Chapter, error) {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Chapter{}, err
	}
	if err := validateChapterInput(input); err != nil {
		return domain.Chapter{}, err
	}
	if _, exists, err := a.store.GetChapterByNumber(bookID, input.Number); err != nil {
		return domain.Chapter{}, fmt.Errorf("check chapter number: %w", err)
	} else if exists {
		return domain.Chapter{}, fmt.Errorf("%w: chapter number %d already exists", ErrInvalidInput, input.Number)
	}
	now := time.Now().UTC()
	chapter := domain.Chapter{
		ID:        util.NewID(),
		BookID:    bookID,
		Number:    input.Number,
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		IsFree:    input.IsFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveChapter(chapter); err != nil {
		return domain.Chapter{}, fmt.Errorf("save chapter: %w", err)
	}
	if err := a.syncChapterCount(book); err != nil {
		return domain.Chapter{}, err
	}
	if book.Status == domain.BookPublished {
		a.announceChapter(ctx, book, chapter)
	}
	return chapter, nil
}

// UpdateChapter edits a chapter in place. The chapter number is fixed
// after creation; renumbering would silently move content in and out
// of the free preview.
func (a *App) UpdateChapter(caller authz.Identity, bookID, chapterID string, input ChapterInput) (domain.Chapter, error) {
	_, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Chapter{}, err
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok || chapter.BookID != bookID {
		return domain.Chapter{}, ErrNotFound
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.Chapter{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	chapter.Title = strings.TrimSpace(input.Title)
	chapter.Content = input.Content
	chapter.IsFree = input.IsFree
	chapter.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveChapter(chapter); err != nil {
		return domain.Chapter{}, fmt.Errorf("save chapter: %w", err)
	}
	return chapter, nil
}

// DeleteChapter removes a chapter and reconciles the book's chapter
// count. The free preview threshold is clamped so it never exceeds
// the remaining chapters.
func (a *App) DeleteChapter(caller authz.Identity, bookID, chapterID string) error {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return err
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok || chapter.BookID != bookID {
		return ErrNotFound
	}
	if err := a.store.DeleteChapter(chapterID); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return a.syncChapterCount(book)
}

// ListMyChapters returns a book's chapters, bodies included, to its
// author or an admin.
func (a *App) ListMyChapters(caller authz.Identity, bookID string) ([]domain.Chapter, error) {
	if _, err := a.editableBook(caller, bookID); err != nil {
		return nil, err
	}
	return a.store.ListChapters(bookID)
}

// ListChapters returns the chapter catalog for a book with a per
// chapter access verdict for the given requester. userID is empty for
// anonymous requesters.
func (a *App) ListChapters(userID, bookID string) ([]ChapterSummary, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Status != domain.BookPublished {
		return nil, ErrNotFound
	}
	chapters, err := a.store.ListChapters(bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	purchased := false
	if userID != "" {
		purchased, err = a.store.HasPurchase(userID, bookID)
		if err != nil {
			// An outage narrows access, it never widens it.
			purchased = false
		}
	}
	summaries := make([]ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		decision, err := gate.Decide(userID != "", purchased, book, ch)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ChapterSummary{
			ID:       ch.ID,
			Number:   ch.Number,
			Title:    ch.Title,
			IsFree:   ch.IsFree,
			Decision: decision,
			Access:   decision.String(),
		})
	}
	return summaries, nil
}

// ReadChapter resolves the gate for one chapter. A locked verdict is
// returned with an empty chapter body, never as an error.
func (a *App) ReadChapter(userID, bookID string, number int) (ChapterView, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return ChapterView{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Status != domain.BookPublished {
		return ChapterView{}, ErrNotFound
	}
	decision, chapter, err := a.gate.Evaluate(userID, bookID, number)
	if err != nil {
		if errors.Is(err, gate.ErrNotFound) {
			return ChapterView{}, ErrNotFound
		}
		return ChapterView{}, fmt.Errorf("evaluate access: %w", err)
	}
	if decision != gate.Allowed {
		return ChapterView{Decision: decision}, nil
	}
	return ChapterView{Decision: decision, Chapter: chapter}, nil
}

func (a *App) syncChapterCount(book domain.Book) error {
	count, err := a.store.CountChapters(book.ID)
	if err != nil {
		return fmt.Errorf("count chapters: %w", err)
	}
	book.TotalChapters = count
	if book.FreeChapters > count {
		book.FreeChapters = count
	}
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// announceChapter emits the publication event. Delivery is best
// effort; a queue outage must not fail the write.
func (a *App) announceChapter(ctx context.Context, book domain.Book, chapter domain.Chapter) {
	if a.events == nil {
		return
	}
	event := queue.ChapterPublished{
		BookID:       book.ID,
		ChapterID:    chapter.ID,
		AuthorID:     book.AuthorID,
		BookTitle:    book.Title,
		ChapterTitle: chapter.Title,
		Number:       chapter.Number,
		PublishedAt:  time.Now().UTC(),
	}
	if err := a.events.Publish(ctx, event); err != nil {
		util.LoggerFromContext(ctx).Warn("publish chapter event failed",
			"book_id", book.ID, "chapter_id", chapter.ID, "err", err)
	}
}

func validateChapterInput(input ChapterInput) error {
	if input.Number <= 0 {
		return fmt.Errorf("%w: chapter number must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	return nil
}
