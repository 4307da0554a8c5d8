package store

import (
	"errors"
	"time"

	"storyconnect/pkg/domain"
)

// ErrNotFound is returned by mutations that target a missing row.
// Point lookups signal absence with their bool result instead.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for the platform. Lookups
// return (value, found, error); absence is not an error.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// profiles
	SaveProfile(domain.Profile) error
	GetProfile(userID string) (domain.Profile, bool, error)
	ListWriterRequests() ([]domain.Profile, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooksByStatus(status domain.BookStatus) ([]domain.Book, error)
	ListBooksByAuthor(authorID string) ([]domain.Book, error)
	DeleteBook(id string) error

	// chapters
	SaveChapter(domain.Chapter) error
	GetChapter(id string) (domain.Chapter, bool, error)
	GetChapterByNumber(bookID string, number int) (domain.Chapter, bool, error)
	ListChapters(bookID string) ([]domain.Chapter, error)
	CountChapters(bookID string) (int, error)
	DeleteChapter(id string) error

	// purchases
	SavePurchase(domain.Purchase) error
	HasPurchase(userID, bookID string) (bool, error)
	ListPurchasesByUser(userID string) ([]domain.Purchase, error)

	// reading
	UpsertProgress(domain.ReadingProgress) error
	ListProgressByUser(userID string) ([]domain.ReadingProgress, error)
	SaveBookmark(domain.Bookmark) error
	DeleteBookmark(userID, chapterID string) error
	ListBookmarks(userID, bookID string) ([]domain.Bookmark, error)
	SaveFavorite(domain.Favorite) error
	DeleteFavorite(userID, bookID string) error
	ListFavoritesByUser(userID string) ([]domain.Favorite, error)

	// follows
	SaveFollow(domain.Follow) error
	DeleteFollow(followerID, authorID string) error
	ListFollowers(authorID string) ([]domain.Follow, error)

	// reviews
	SaveReview(domain.Review) error
	GetReviewByUser(bookID, userID string) (domain.Review, bool, error)
	ListReviews(bookID string) ([]domain.Review, error)

	// blog
	SaveBlogPost(domain.BlogPost) error
	GetBlogPost(id string) (domain.BlogPost, bool, error)
	ListBlogPosts() ([]domain.BlogPost, error)
	DeleteBlogPost(id string) error

	// discussions
	SaveDiscussion(domain.Discussion) error
	GetDiscussion(id string) (domain.Discussion, bool, error)
	ListDiscussions() ([]domain.Discussion, error)
	IncrementDiscussionViews(id string) error
	SaveReply(domain.DiscussionReply) error
	ListReplies(discussionID string) ([]domain.DiscussionReply, error)

	// founders
	SaveFounder(domain.Founder) error
	ListFounders() ([]domain.Founder, error)
	DeleteFounder(id string) error

	// notifications
	SaveNotification(domain.Notification) error
	ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(id, userID string) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all
// sessions issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores
// that can publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}
