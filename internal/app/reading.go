package app

import (
	"fmt"
	"time"

	"storyconnect/internal/util"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

// SaveProgress upserts the caller's reading position for a book.
func (a *App) SaveProgress(caller authz.Identity, bookID, chapterID string, percentage int) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidInput)
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok || chapter.BookID != bookID {
		return ErrNotFound
	}
	progress := domain.ReadingProgress{
		UserID:     caller.User.ID,
		BookID:     bookID,
		ChapterID:  chapterID,
		Percentage: percentage,
		LastReadAt: time.Now().UTC(),
	}
	if err := a.store.UpsertProgress(progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ListProgress returns the caller's reading positions across books.
func (a *App) ListProgress(caller authz.Identity) ([]domain.ReadingProgress, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	return a.store.ListProgressByUser(caller.User.ID)
}

// AddBookmark marks a chapter for the caller.
func (a *App) AddBookmark(caller authz.Identity, bookID, chapterID, note string) (domain.Bookmark, error) {
	if !caller.Authenticated() {
		return domain.Bookmark{}, ErrForbidden
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok || chapter.BookID != bookID {
		return domain.Bookmark{}, ErrNotFound
	}
	bookmark := domain.Bookmark{
		ID:        util.NewID(),
		UserID:    caller.User.ID,
		BookID:    bookID,
		ChapterID: chapterID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveBookmark(bookmark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("save bookmark: %w", err)
	}
	return bookmark, nil
}

// RemoveBookmark deletes the caller's bookmark on a chapter.
func (a *App) RemoveBookmark(caller authz.Identity, chapterID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if err := a.store.DeleteBookmark(caller.User.ID, chapterID); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns the caller's bookmarks within one book.
func (a *App) ListBookmarks(caller authz.Identity, bookID string) ([]domain.Bookmark, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	return a.store.ListBookmarks(caller.User.ID, bookID)
}

// AddFavorite puts a book on the caller's favorites shelf. Favoriting
// an already-favorited book is a no-op.
func (a *App) AddFavorite(caller authz.Identity, bookID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Status != domain.BookPublished {
		return ErrNotFound
	}
	favorite := domain.Favorite{
		UserID:    caller.User.ID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveFavorite(favorite); err != nil {
		return fmt.Errorf("save favorite: %w", err)
	}
	return nil
}

// RemoveFavorite takes a book off the caller's favorites shelf.
func (a *App) RemoveFavorite(caller authz.Identity, bookID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if err := a.store.DeleteFavorite(caller.User.ID, bookID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the caller's favorites shelf.
func (a *App) ListFavorites(caller authz.Identity) ([]domain.Favorite, error) {
	if !caller.Authenticated() {
		return nil, ErrForbidden
	}
	return a.store.ListFavoritesByUser(caller.User.ID)
}

// FollowAuthor subscribes the caller to an author's chapter
// publications. Self-follow is rejected.
func (a *App) FollowAuthor(caller authz.Identity, authorID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if authorID == caller.User.ID {
		return fmt.Errorf("%w: cannot follow yourself", ErrInvalidInput)
	}
	author, ok, err := a.store.GetUserByID(authorID)
	if err != nil {
		return fmt.Errorf("fetch author: %w", err)
	}
	if !ok || author.Status != domain.StatusActive {
		return ErrNotFound
	}
	follow := domain.Follow{
		FollowerID: caller.User.ID,
		AuthorID:   authorID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.SaveFollow(follow); err != nil {
		return fmt.Errorf("save follow: %w", err)
	}
	return nil
}

// UnfollowAuthor removes the caller's subscription to an author.
func (a *App) UnfollowAuthor(caller authz.Identity, authorID string) error {
	if !caller.Authenticated() {
		return ErrForbidden
	}
	if err := a.store.DeleteFollow(caller.User.ID, authorID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}
