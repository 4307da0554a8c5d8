package domain

import "time"

// Role is a coarse capability grant. The set of roles is closed;
// anything else must be rejected at the boundary, never coerced.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// ParseRole maps a raw string onto the closed role enum.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleWriter:
		return RoleWriter, true
	case RoleReader:
		return RoleReader, true
	default:
		return "", false
	}
}

// Valid reports whether the role is a member of the closed enum.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// User is the authenticated identity. Capabilities are not stored on
// the user; they come from role assignments resolved by the
// authorization kernel.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Assignment is one (user, role) grant. The pair is unique.
type Assignment struct {
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Profile struct {
	UserID    string `json:"userId"`
	FullName  string `json:"fullName"`
	Bio       string `json:"bio,omitempty"`
	AvatarKey string `json:"-"`

	// Writer accounts start as pending requests; an admin approves or
	// rejects them. A rejected request clears WriterRequestedAt.
	WriterRequestedAt *time.Time `json:"writerRequestedAt,omitempty"`
	WriterApproved    bool       `json:"writerApproved"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BookStatus string

const (
	BookDraft     BookStatus = "draft"
	BookPublished BookStatus = "published"
	BookArchived  BookStatus = "archived"
)

// ParseBookStatus maps a raw string onto the book status enum.
func ParseBookStatus(raw string) (BookStatus, bool) {
	switch BookStatus(raw) {
	case BookDraft:
		return BookDraft, true
	case BookPublished:
		return BookPublished, true
	case BookArchived:
		return BookArchived, true
	default:
		return "", false
	}
}

type Book struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"authorId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Genre         string     `json:"genre,omitempty"`
	CoverKey      string     `json:"-"`
	Status        BookStatus `json:"status"`
	Price         float64    `json:"price"`
	TotalChapters int        `json:"totalChapters"`
	FreeChapters  int        `json:"freeChapters"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Chapter content bodies are only exposed through the access gate.
type Chapter struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	IsFree    bool      `json:"isFree"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Purchase is durable proof of payment. Rows are written once by the
// checkout flow and never mutated afterwards.
type Purchase struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	BookID        string    `json:"bookId"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId,omitempty"`
	PurchasedAt   time.Time `json:"purchasedAt"`
}

type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	ChapterID string    `json:"chapterId"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadingProgress is upserted per (user, book) as the reader navigates.
type ReadingProgress struct {
	UserID     string    `json:"userId"`
	BookID     string    `json:"bookId"`
	ChapterID  string    `json:"chapterId"`
	Percentage int       `json:"percentage"`
	LastReadAt time.Time `json:"lastReadAt"`
}

type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BlogPost struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt,omitempty"`
	ReadMinutes int        `json:"readMinutes"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Discussion struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Category  string    `json:"category,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DiscussionReply struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussionId"`
	AuthorID     string    `json:"authorId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Founder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Bio         string    `json:"bio,omitempty"`
	ImageKey    string    `json:"-"`
	LinkedinURL string    `json:"linkedinUrl,omitempty"`
	TwitterURL  string    `json:"twitterUrl,omitempty"`
	OrderIndex  int       `json:"orderIndex"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Favorite struct {
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Follow struct {
	FollowerID string    `json:"followerId"`
	AuthorID   string    `json:"authorId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification is produced by the notifier worker when a followed
// author publishes a new chapter.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	ChapterID string    `json:"chapterId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
