// Package gate decides whether a chapter body may be shown to a
// requesting reader. The decision is a pure function of purchase
// existence, the chapter number, the book's free-chapter threshold,
// the chapter's free flag, and whether the requester is signed in.
package gate

import (
	"errors"
	"log/slog"

	"storyconnect/pkg/domain"
)

// ErrNotFound is returned when the book or chapter cannot be resolved
// (including a chapter that does not belong to the given book). Every
// unresolved lookup fails closed; the gate never defaults to Allowed.
var ErrNotFound = errors.New("book or chapter not found")

// Decision is the gate's verdict for one (user, book, chapter) triple.
type Decision int

const (
	// Allowed means the chapter body may be rendered.
	Allowed Decision = iota
	// LockedPreviewOnly means the requester is signed in but has not
	// purchased the book, and the chapter is past the free preview.
	LockedPreviewOnly
	// LockedNoAccount means the requester must sign in before being
	// told anything more specific.
	LockedNoAccount
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case LockedPreviewOnly:
		return "locked_preview_only"
	case LockedNoAccount:
		return "locked_no_account"
	default:
		return "unknown"
	}
}

// Decide evaluates the access rules in fixed order, first match wins:
//
//  1. a purchase grants the whole book;
//  2. a chapter inside the free preview is readable by anyone,
//     signed in or not;
//  3. otherwise an anonymous requester is told to sign in;
//  4. otherwise the requester is locked to the preview.
//
// The free preview is the union of the book-level threshold
// (number <= FreeChapters) and the per-chapter IsFree override.
func Decide(authenticated, purchased bool, book domain.Book, chapter domain.Chapter) (Decision, error) {
	if chapter.BookID != book.ID || chapter.Number <= 0 {
		return 0, ErrNotFound
	}
	switch {
	case purchased:
		return Allowed, nil
	case chapter.Number <= book.FreeChapters || chapter.IsFree:
		return Allowed, nil
	case !authenticated:
		return LockedNoAccount, nil
	default:
		return LockedPreviewOnly, nil
	}
}

// Lookups is the slice of the store the gate needs.
type Lookups interface {
	GetBook(id string) (domain.Book, bool, error)
	GetChapterByNumber(bookID string, number int) (domain.Chapter, bool, error)
	HasPurchase(userID, bookID string) (bool, error)
}

// Service resolves a gate decision from persisted state. userID is
// empty for anonymous requesters.
type Service struct {
	lookups Lookups
}

// NewService builds a gate service over the given lookups.
func NewService(lookups Lookups) *Service {
	return &Service{lookups: lookups}
}

// Evaluate resolves book, chapter and purchase existence, then applies
// Decide. Lookup failures surface as errors; a purchase check failure
// degrades to "not purchased" so an outage can narrow access but
// never widen it.
func (s *Service) Evaluate(userID, bookID string, number int) (Decision, domain.Chapter, error) {
	book, ok, err := s.lookups.GetBook(bookID)
	if err != nil {
		return 0, domain.Chapter{}, err
	}
	if !ok {
		return 0, domain.Chapter{}, ErrNotFound
	}
	chapter, ok, err := s.lookups.GetChapterByNumber(bookID, number)
	if err != nil {
		return 0, domain.Chapter{}, err
	}
	if !ok {
		return 0, domain.Chapter{}, ErrNotFound
	}

	purchased := false
	if userID != "" {
		purchased, err = s.lookups.HasPurchase(userID, bookID)
		if err != nil {
			slog.Warn("purchase lookup failed, treating as not purchased",
				"user_id", userID, "book_id", bookID, "err", err)
			purchased = false
		}
	}

	decision, err := Decide(userID != "", purchased, book, chapter)
	if err != nil {
		return 0, domain.Chapter{}, err
	}
	return decision, chapter, nil
}
