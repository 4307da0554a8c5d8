package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

// RoleAssignmentModel enforces the unique (user, role) pair at the
// storage boundary.
type RoleAssignmentModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;uniqueIndex:idx_role_assignment"`
	Role      string `gorm:"not null;uniqueIndex:idx_role_assignment"`
	CreatedAt time.Time
}

type ProfileModel struct {
	UserID            string `gorm:"primaryKey"`
	FullName          string `gorm:"not null"`
	Bio               string
	AvatarKey         string
	WriterRequestedAt *time.Time `gorm:"index"`
	WriterApproved    bool       `gorm:"not null;default:false"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	AuthorID      string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Description   string
	Genre         string
	CoverKey      string
	Status        string  `gorm:"not null;index"`
	Price         float64 `gorm:"not null"`
	TotalChapters int     `gorm:"not null"`
	FreeChapters  int     `gorm:"not null"`
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type ChapterModel struct {
	ID        string `gorm:"primaryKey"`
	BookID    string `gorm:"not null;uniqueIndex:idx_book_chapter"`
	Number    int    `gorm:"not null;uniqueIndex:idx_book_chapter"`
	Title     string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	IsFree    bool   `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PurchaseModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;uniqueIndex:idx_user_book_purchase"`
	BookID        string `gorm:"not null;uniqueIndex:idx_user_book_purchase"`
	Amount        float64 `gorm:"not null"`
	PaymentMethod string  `gorm:"not null"`
	TransactionID string
	PurchasedAt   time.Time `gorm:"not null"`
}

type BookmarkModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	BookID    string `gorm:"not null;index"`
	ChapterID string `gorm:"not null"`
	Note      string
	CreatedAt time.Time `gorm:"not null"`
}

type ReadingProgressModel struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"not null;uniqueIndex:idx_user_book_progress"`
	BookID     string `gorm:"not null;uniqueIndex:idx_user_book_progress"`
	ChapterID  string `gorm:"not null"`
	Percentage int    `gorm:"not null"`
	LastReadAt time.Time `gorm:"not null"`
}

type ReviewModel struct {
	ID        string `gorm:"primaryKey"`
	BookID    string `gorm:"not null;uniqueIndex:idx_book_user_review"`
	UserID    string `gorm:"not null;uniqueIndex:idx_book_user_review"`
	Rating    int    `gorm:"not null"`
	Comment   string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type BlogPostModel struct {
	ID          string `gorm:"primaryKey"`
	AuthorID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Category    string `gorm:"not null"`
	Content     string `gorm:"type:text;not null"`
	Excerpt     string
	ReadMinutes int
	PublishedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type DiscussionModel struct {
	ID        string `gorm:"primaryKey"`
	AuthorID  string `gorm:"not null;index"`
	Category  string
	Title     string `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`
	Likes     int    `gorm:"not null"`
	Views     int    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type DiscussionReplyModel struct {
	ID           string `gorm:"primaryKey"`
	DiscussionID string `gorm:"not null;index"`
	AuthorID     string `gorm:"not null"`
	Content      string `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type FounderModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Role        string `gorm:"not null"`
	Bio         string
	ImageKey    string
	LinkedinURL string
	TwitterURL  string
	OrderIndex  int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type FavoriteModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;uniqueIndex:idx_user_book_favorite"`
	BookID    string `gorm:"not null;uniqueIndex:idx_user_book_favorite"`
	CreatedAt time.Time `gorm:"not null"`
}

type FollowModel struct {
	ID         uint   `gorm:"primaryKey"`
	FollowerID string `gorm:"not null;uniqueIndex:idx_follower_author"`
	AuthorID   string `gorm:"not null;uniqueIndex:idx_follower_author;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

// NotificationModel keeps the source references (book, chapter) in the
// metadata JSON document so new notification kinds can carry extra
// fields without a migration.
type NotificationModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"not null;index"`
	Message   string         `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	Read      bool           `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
