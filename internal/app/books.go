package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"storyconnect/internal/util"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/storage"
)

// BookInput carries writer-editable book fields.
type BookInput struct {
	Title        string
	Description  string
	Genre        string
	Price        float64
	FreeChapters int
}

// CreateBook creates a draft. Writer capability required. The free
// preview threshold cannot exceed the chapter count, which is zero for
// a new book, so it starts at zero and is raised as chapters land.
func (a *App) CreateBook(caller authz.Identity, input BookInput) (domain.Book, error) {
	if !caller.HasRole(domain.RoleWriter) {
		return domain.Book{}, ErrForbidden
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return domain.Book{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if input.Price < 0 {
		return domain.Book{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if input.FreeChapters != 0 {
		return domain.Book{}, ErrFreePreviewTooLarge
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:          util.NewID(),
		AuthorID:    caller.User.ID,
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Genre:       strings.TrimSpace(input.Genre),
		Status:      domain.BookDraft,
		Price:       input.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

// UpdateBook edits a book. Only the author or an admin may touch it.
func (a *App) UpdateBook(caller authz.Identity, bookID string, input BookInput) (domain.Book, error) {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return domain.Book{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if input.Price < 0 {
		return domain.Book{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if input.FreeChapters < 0 || input.FreeChapters > book.TotalChapters {
		return domain.Book{}, ErrFreePreviewTooLarge
	}
	book.Title = input.Title
	book.Description = strings.TrimSpace(input.Description)
	book.Genre = strings.TrimSpace(input.Genre)
	book.Price = input.Price
	book.FreeChapters = input.FreeChapters
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// PublishBook moves a draft to published. Followers hear about the
// latest chapter that went live with the book.
func (a *App) PublishBook(ctx context.Context, caller authz.Identity, bookID string) (domain.Book, error) {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if book.Status == domain.BookPublished {
		return book, nil
	}
	now := time.Now().UTC()
	book.Status = domain.BookPublished
	book.PublishedAt = &now
	book.UpdatedAt = now
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("publish book: %w", err)
	}
	if latest, ok := a.latestChapter(ctx, book.ID); ok {
		a.announceChapter(ctx, book, latest)
	}
	return book, nil
}

// latestChapter returns the highest-numbered chapter of a book.
func (a *App) latestChapter(ctx context.Context, bookID string) (domain.Chapter, bool) {
	chapters, err := a.store.ListChapters(bookID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("list chapters for announcement failed",
			"book_id", bookID, "err", err)
		return domain.Chapter{}, false
	}
	var latest domain.Chapter
	for _, c := range chapters {
		if c.Number > latest.Number {
			latest = c
		}
	}
	return latest, latest.ID != ""
}

// ArchiveBook retires a book from the catalog. Existing purchases
// keep working because the gate checks purchases before anything else.
func (a *App) ArchiveBook(ctx context.Context, caller authz.Identity, bookID string) (domain.Book, error) {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	book.Status = domain.BookArchived
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("archive book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book and its chapters.
func (a *App) DeleteBook(caller authz.Identity, bookID string) error {
	if _, err := a.editableBook(caller, bookID); err != nil {
		return err
	}
	if err := a.store.DeleteBook(bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// GetBook returns any published book, or a draft/archived book to its
// author or an admin.
func (a *App) GetBook(caller authz.Identity, bookID string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if book.Status != domain.BookPublished && !canEdit(caller, book) {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// ListPublishedBooks is the public catalog.
func (a *App) ListPublishedBooks() ([]domain.Book, error) {
	return a.store.ListBooksByStatus(domain.BookPublished)
}

// ListMyBooks returns the caller's own books, drafts included.
func (a *App) ListMyBooks(caller authz.Identity) ([]domain.Book, error) {
	if !caller.HasRole(domain.RoleWriter) {
		return nil, ErrForbidden
	}
	return a.store.ListBooksByAuthor(caller.User.ID)
}

// SetCover uploads a cover image for the book.
func (a *App) SetCover(ctx context.Context, caller authz.Identity, bookID string, r io.Reader, size int64, contentType string) (domain.Book, error) {
	book, err := a.editableBook(caller, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if a.objects == nil {
		return domain.Book{}, fmt.Errorf("%w: object storage not configured", ErrInvalidInput)
	}
	key := storage.CoverKey(book.ID)
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	book.CoverKey = key
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// CoverURL returns a short-lived URL for the book cover, or empty when
// none is set.
func (a *App) CoverURL(ctx context.Context, book domain.Book) (string, error) {
	if a.objects == nil || book.CoverKey == "" {
		return "", nil
	}
	return a.objects.PresignGet(ctx, book.CoverKey, 15*time.Minute)
}

func (a *App) editableBook(caller authz.Identity, bookID string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if !canEdit(caller, book) {
		return domain.Book{}, ErrForbidden
	}
	return book, nil
}

func canEdit(caller authz.Identity, book domain.Book) bool {
	if caller.HasRole(domain.RoleAdmin) {
		return true
	}
	return caller.HasRole(domain.RoleWriter) && caller.User.ID == book.AuthorID
}
