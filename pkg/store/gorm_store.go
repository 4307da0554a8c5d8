package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

const migrateLockID int64 = 52905290

// GormStore implements Store and authz.RoleStore using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&UserModel{},
			&RoleAssignmentModel{},
			&ProfileModel{},
			&BookModel{},
			&ChapterModel{},
			&PurchaseModel{},
			&BookmarkModel{},
			&ReadingProgressModel{},
			&ReviewModel{},
			&BlogPostModel{},
			&DiscussionModel{},
			&DiscussionReplyModel{},
			&FounderModel{},
			&FavoriteModel{},
			&FollowModel{},
			&NotificationModel{},
		)
	}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// users

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "status", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// roles (authz.RoleStore)

// ListRoles returns the stored role strings for a user, rejecting any
// value outside the closed enum.
func (s *GormStore) ListRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	var models []RoleAssignmentModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	roles := make([]domain.Role, 0, len(models))
	for _, m := range models {
		role, ok := domain.ParseRole(m.Role)
		if !ok {
			return nil, fmt.Errorf("stored role %q is not a valid role", m.Role)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// AssignRole inserts a grant; a duplicate (user, role) pair fails with
// authz.ErrDuplicateRole.
func (s *GormStore) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return authz.ErrInvalidRole
	}
	model := RoleAssignmentModel{
		UserID:    userID,
		Role:      string(role),
		CreatedAt: time.Now().UTC(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authz.ErrDuplicateRole
	}
	return nil
}

// RevokeRole deletes a grant; revoking an absent role is a no-op.
func (s *GormStore) RevokeRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return authz.ErrInvalidRole
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, string(role)).
		Delete(&RoleAssignmentModel{}).Error
}

// profiles

// SaveProfile stores or updates a profile.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "bio", "avatar_key",
			"writer_requested_at", "writer_approved", "updated_at",
		}),
	}).Create(&model).Error
}

// ListWriterRequests returns profiles with a pending or decided writer
// request, newest request first.
func (s *GormStore) ListWriterRequests() ([]domain.Profile, error) {
	var models []ProfileModel
	err := s.db.Where("writer_requested_at IS NOT NULL").
		Order("writer_requested_at DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		profiles = append(profiles, profileFromModel(m))
	}
	return profiles, nil
}

// GetProfile returns a profile by user ID.
func (s *GormStore) GetProfile(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// books

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "genre", "cover_key", "status", "price",
			"total_chapters", "free_chapters", "published_at", "updated_at",
		}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooksByStatus returns books with the given status.
func (s *GormStore) ListBooksByStatus(status domain.BookStatus) ([]domain.Book, error) {
	return s.listBooks("created_at ASC", "status = ?", string(status))
}

// ListBooksByAuthor returns books owned by the author.
func (s *GormStore) ListBooksByAuthor(authorID string) ([]domain.Book, error) {
	return s.listBooks("created_at ASC", "author_id = ?", authorID)
}

func (s *GormStore) listBooks(order string, conds ...any) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBook removes a book and its dependents.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ChapterModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BookmarkModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReadingProgressModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// chapters

// SaveChapter stores or updates a chapter.
func (s *GormStore) SaveChapter(c domain.Chapter) error {
	model := chapterToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "is_free", "updated_at"}),
	}).Create(&model).Error
}

// GetChapter retrieves a chapter by ID.
func (s *GormStore) GetChapter(id string) (domain.Chapter, bool, error) {
	var model ChapterModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Chapter{}, false, nil
		}
		return domain.Chapter{}, false, err
	}
	return chapterFromModel(model), true, nil
}

// GetChapterByNumber retrieves a chapter by its position in the book.
func (s *GormStore) GetChapterByNumber(bookID string, number int) (domain.Chapter, bool, error) {
	var model ChapterModel
	if err := s.db.Where("book_id = ? AND number = ?", bookID, number).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Chapter{}, false, nil
		}
		return domain.Chapter{}, false, err
	}
	return chapterFromModel(model), true, nil
}

// ListChapters returns chapters in reading order.
func (s *GormStore) ListChapters(bookID string) ([]domain.Chapter, error) {
	var models []ChapterModel
	if err := s.db.Where("book_id = ?", bookID).Order("number ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chapter, 0, len(models))
	for _, m := range models {
		res = append(res, chapterFromModel(m))
	}
	return res, nil
}

// CountChapters returns the number of chapters in a book.
func (s *GormStore) CountChapters(bookID string) (int, error) {
	var count int64
	if err := s.db.Model(&ChapterModel{}).Where("book_id = ?", bookID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteChapter removes a chapter.
func (s *GormStore) DeleteChapter(id string) error {
	return s.db.Delete(&ChapterModel{}, "id = ?", id).Error
}

// purchases

// SavePurchase records a purchase. Rows are insert-only.
func (s *GormStore) SavePurchase(p domain.Purchase) error {
	model := purchaseToModel(p)
	return s.db.Create(&model).Error
}

// HasPurchase reports whether a purchase row exists for (user, book).
func (s *GormStore) HasPurchase(userID, bookID string) (bool, error) {
	var count int64
	if err := s.db.Model(&PurchaseModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPurchasesByUser returns purchases for a user, newest first.
func (s *GormStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	var models []PurchaseModel
	if err := s.db.Where("user_id = ?", userID).Order("purchased_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Purchase, 0, len(models))
	for _, m := range models {
		res = append(res, purchaseFromModel(m))
	}
	return res, nil
}

// reading

// UpsertProgress stores reading progress keyed by (user, book).
func (s *GormStore) UpsertProgress(p domain.ReadingProgress) error {
	model := progressToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chapter_id", "percentage", "last_read_at"}),
	}).Create(&model).Error
}

// ListProgressByUser returns progress rows, most recent first.
func (s *GormStore) ListProgressByUser(userID string) ([]domain.ReadingProgress, error) {
	var models []ReadingProgressModel
	if err := s.db.Where("user_id = ?", userID).Order("last_read_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ReadingProgress, 0, len(models))
	for _, m := range models {
		res = append(res, progressFromModel(m))
	}
	return res, nil
}

// SaveBookmark stores a bookmark.
func (s *GormStore) SaveBookmark(b domain.Bookmark) error {
	model := bookmarkToModel(b)
	return s.db.Create(&model).Error
}

// DeleteBookmark removes a user's bookmark on a chapter.
func (s *GormStore) DeleteBookmark(userID, chapterID string) error {
	return s.db.Where("user_id = ? AND chapter_id = ?", userID, chapterID).
		Delete(&BookmarkModel{}).Error
}

// ListBookmarks returns a user's bookmarks within a book.
func (s *GormStore) ListBookmarks(userID, bookID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// SaveFavorite stores a favorite, ignoring duplicates.
func (s *GormStore) SaveFavorite(f domain.Favorite) error {
	model := FavoriteModel{UserID: f.UserID, BookID: f.BookID, CreatedAt: f.CreatedAt}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// DeleteFavorite removes a favorite.
func (s *GormStore) DeleteFavorite(userID, bookID string) error {
	return s.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&FavoriteModel{}).Error
}

// ListFavoritesByUser returns a user's favorites.
func (s *GormStore) ListFavoritesByUser(userID string) ([]domain.Favorite, error) {
	var models []FavoriteModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Favorite, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Favorite{UserID: m.UserID, BookID: m.BookID, CreatedAt: m.CreatedAt})
	}
	return res, nil
}

// follows

// SaveFollow stores a follow edge, ignoring duplicates.
func (s *GormStore) SaveFollow(f domain.Follow) error {
	model := FollowModel{FollowerID: f.FollowerID, AuthorID: f.AuthorID, CreatedAt: f.CreatedAt}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// DeleteFollow removes a follow edge.
func (s *GormStore) DeleteFollow(followerID, authorID string) error {
	return s.db.Where("follower_id = ? AND author_id = ?", followerID, authorID).
		Delete(&FollowModel{}).Error
}

// ListFollowers returns the followers of an author.
func (s *GormStore) ListFollowers(authorID string) ([]domain.Follow, error) {
	var models []FollowModel
	if err := s.db.Where("author_id = ?", authorID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Follow, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Follow{FollowerID: m.FollowerID, AuthorID: m.AuthorID, CreatedAt: m.CreatedAt})
	}
	return res, nil
}

// reviews

// SaveReview stores or updates a user's review of a book.
func (s *GormStore) SaveReview(r domain.Review) error {
	model := reviewToModel(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(&model).Error
}

// GetReviewByUser returns a user's review of a book.
func (s *GormStore) GetReviewByUser(bookID, userID string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.Where("book_id = ? AND user_id = ?", bookID, userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// ListReviews returns reviews for a book, newest first.
func (s *GormStore) ListReviews(bookID string) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.Where("book_id = ?", bookID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

// blog

// SaveBlogPost stores or updates a blog post.
func (s *GormStore) SaveBlogPost(p domain.BlogPost) error {
	model := blogPostToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "category", "content", "excerpt", "read_minutes", "published_at", "updated_at",
		}),
	}).Create(&model).Error
}

// GetBlogPost retrieves a blog post.
func (s *GormStore) GetBlogPost(id string) (domain.BlogPost, bool, error) {
	var model BlogPostModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.BlogPost{}, false, nil
		}
		return domain.BlogPost{}, false, err
	}
	return blogPostFromModel(model), true, nil
}

// ListBlogPosts returns blog posts, newest first.
func (s *GormStore) ListBlogPosts() ([]domain.BlogPost, error) {
	var models []BlogPostModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BlogPost, 0, len(models))
	for _, m := range models {
		res = append(res, blogPostFromModel(m))
	}
	return res, nil
}

// DeleteBlogPost removes a blog post.
func (s *GormStore) DeleteBlogPost(id string) error {
	return s.db.Delete(&BlogPostModel{}, "id = ?", id).Error
}

// discussions

// SaveDiscussion stores or updates a discussion thread.
func (s *GormStore) SaveDiscussion(d domain.Discussion) error {
	model := discussionToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "title", "content", "likes", "updated_at"}),
	}).Create(&model).Error
}

// GetDiscussion retrieves a discussion thread.
func (s *GormStore) GetDiscussion(id string) (domain.Discussion, bool, error) {
	var model DiscussionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Discussion{}, false, nil
		}
		return domain.Discussion{}, false, err
	}
	return discussionFromModel(model), true, nil
}

// ListDiscussions returns discussions, newest first.
func (s *GormStore) ListDiscussions() ([]domain.Discussion, error) {
	var models []DiscussionModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Discussion, 0, len(models))
	for _, m := range models {
		res = append(res, discussionFromModel(m))
	}
	return res, nil
}

// IncrementDiscussionViews bumps the view counter.
func (s *GormStore) IncrementDiscussionViews(id string) error {
	return s.db.Model(&DiscussionModel{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// SaveReply stores a discussion reply.
func (s *GormStore) SaveReply(r domain.DiscussionReply) error {
	model := DiscussionReplyModel{
		ID:           r.ID,
		DiscussionID: r.DiscussionID,
		AuthorID:     r.AuthorID,
		Content:      r.Content,
		CreatedAt:    r.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListReplies returns replies in chronological order.
func (s *GormStore) ListReplies(discussionID string) ([]domain.DiscussionReply, error) {
	var models []DiscussionReplyModel
	if err := s.db.Where("discussion_id = ?", discussionID).
		Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DiscussionReply, 0, len(models))
	for _, m := range models {
		res = append(res, domain.DiscussionReply{
			ID:           m.ID,
			DiscussionID: m.DiscussionID,
			AuthorID:     m.AuthorID,
			Content:      m.Content,
			CreatedAt:    m.CreatedAt,
		})
	}
	return res, nil
}

// founders

// SaveFounder stores or updates a founder entry.
func (s *GormStore) SaveFounder(f domain.Founder) error {
	model := founderToModel(f)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "role", "bio", "image_key", "linkedin_url", "twitter_url", "order_index", "updated_at",
		}),
	}).Create(&model).Error
}

// ListFounders returns founders by display order.
func (s *GormStore) ListFounders() ([]domain.Founder, error) {
	var models []FounderModel
	if err := s.db.Order("order_index ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Founder, 0, len(models))
	for _, m := range models {
		res = append(res, founderFromModel(m))
	}
	return res, nil
}

// DeleteFounder removes a founder entry.
func (s *GormStore) DeleteFounder(id string) error {
	return s.db.Delete(&FounderModel{}, "id = ?", id).Error
}

// notifications

// notificationMeta is the JSON document stored in the metadata column.
type notificationMeta struct {
	BookID    string `json:"bookId"`
	ChapterID string `json:"chapterId"`
}

// SaveNotification stores a notification. The source references travel
// in the JSON document rather than dedicated columns.
func (s *GormStore) SaveNotification(n domain.Notification) error {
	meta, err := json.Marshal(notificationMeta{BookID: n.BookID, ChapterID: n.ChapterID})
	if err != nil {
		return err
	}
	model := NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		Metadata:  datatypes.JSON(meta),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListNotificationsByUser returns recent notifications, newest first.
func (s *GormStore) ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []NotificationModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		var meta notificationMeta
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("decode notification metadata: %w", err)
			}
		}
		res = append(res, domain.Notification{
			ID:        m.ID,
			UserID:    m.UserID,
			BookID:    meta.BookID,
			ChapterID: meta.ChapterID,
			Message:   m.Message,
			Read:      m.Read,
			CreatedAt: m.CreatedAt,
		})
	}
	return res, nil
}

// MarkNotificationRead flags a user's notification as read.
func (s *GormStore) MarkNotificationRead(id, userID string) error {
	res := s.db.Model(&NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// mapping

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Status:       status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		UserID:            p.UserID,
		FullName:          p.FullName,
		Bio:               p.Bio,
		AvatarKey:         p.AvatarKey,
		WriterRequestedAt: p.WriterRequestedAt,
		WriterApproved:    p.WriterApproved,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		UserID:            m.UserID,
		FullName:          m.FullName,
		Bio:               m.Bio,
		AvatarKey:         m.AvatarKey,
		WriterRequestedAt: m.WriterRequestedAt,
		WriterApproved:    m.WriterApproved,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		AuthorID:      b.AuthorID,
		Title:         b.Title,
		Description:   b.Description,
		Genre:         b.Genre,
		CoverKey:      b.CoverKey,
		Status:        string(b.Status),
		Price:         b.Price,
		TotalChapters: b.TotalChapters,
		FreeChapters:  b.FreeChapters,
		PublishedAt:   b.PublishedAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:            m.ID,
		AuthorID:      m.AuthorID,
		Title:         m.Title,
		Description:   m.Description,
		Genre:         m.Genre,
		CoverKey:      m.CoverKey,
		Status:        domain.BookStatus(m.Status),
		Price:         m.Price,
		TotalChapters: m.TotalChapters,
		FreeChapters:  m.FreeChapters,
		PublishedAt:   m.PublishedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func chapterToModel(c domain.Chapter) ChapterModel {
	return ChapterModel{
		ID:        c.ID,
		BookID:    c.BookID,
		Number:    c.Number,
		Title:     c.Title,
		Content:   c.Content,
		IsFree:    c.IsFree,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func chapterFromModel(m ChapterModel) domain.Chapter {
	return domain.Chapter{
		ID:        m.ID,
		BookID:    m.BookID,
		Number:    m.Number,
		Title:     m.Title,
		Content:   m.Content,
		IsFree:    m.IsFree,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func purchaseToModel(p domain.Purchase) PurchaseModel {
	return PurchaseModel{
		ID:            p.ID,
		UserID:        p.UserID,
		BookID:        p.BookID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		PurchasedAt:   p.PurchasedAt,
	}
}

func purchaseFromModel(m PurchaseModel) domain.Purchase {
	return domain.Purchase{
		ID:            m.ID,
		UserID:        m.UserID,
		BookID:        m.BookID,
		Amount:        m.Amount,
		PaymentMethod: m.PaymentMethod,
		TransactionID: m.TransactionID,
		PurchasedAt:   m.PurchasedAt,
	}
}

func bookmarkToModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:        b.ID,
		UserID:    b.UserID,
		BookID:    b.BookID,
		ChapterID: b.ChapterID,
		Note:      b.Note,
		CreatedAt: b.CreatedAt,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		ChapterID: m.ChapterID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

func progressToModel(p domain.ReadingProgress) ReadingProgressModel {
	return ReadingProgressModel{
		UserID:     p.UserID,
		BookID:     p.BookID,
		ChapterID:  p.ChapterID,
		Percentage: p.Percentage,
		LastReadAt: p.LastReadAt,
	}
}

func progressFromModel(m ReadingProgressModel) domain.ReadingProgress {
	return domain.ReadingProgress{
		UserID:     m.UserID,
		BookID:     m.BookID,
		ChapterID:  m.ChapterID,
		Percentage: m.Percentage,
		LastReadAt: m.LastReadAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		BookID:    m.BookID,
		UserID:    m.UserID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func blogPostToModel(p domain.BlogPost) BlogPostModel {
	return BlogPostModel{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Category:    p.Category,
		Content:     p.Content,
		Excerpt:     p.Excerpt,
		ReadMinutes: p.ReadMinutes,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func blogPostFromModel(m BlogPostModel) domain.BlogPost {
	return domain.BlogPost{
		ID:          m.ID,
		AuthorID:    m.AuthorID,
		Title:       m.Title,
		Category:    m.Category,
		Content:     m.Content,
		Excerpt:     m.Excerpt,
		ReadMinutes: m.ReadMinutes,
		PublishedAt: m.PublishedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func discussionToModel(d domain.Discussion) DiscussionModel {
	return DiscussionModel{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		Category:  d.Category,
		Title:     d.Title,
		Content:   d.Content,
		Likes:     d.Likes,
		Views:     d.Views,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func discussionFromModel(m DiscussionModel) domain.Discussion {
	return domain.Discussion{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Category:  m.Category,
		Title:     m.Title,
		Content:   m.Content,
		Likes:     m.Likes,
		Views:     m.Views,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func founderToModel(f domain.Founder) FounderModel {
	return FounderModel{
		ID:          f.ID,
		Name:        f.Name,
		Role:        f.Role,
		Bio:         f.Bio,
		ImageKey:    f.ImageKey,
		LinkedinURL: f.LinkedinURL,
		TwitterURL:  f.TwitterURL,
		OrderIndex:  f.OrderIndex,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func founderFromModel(m FounderModel) domain.Founder {
	return domain.Founder{
		ID:          m.ID,
		Name:        m.Name,
		Role:        m.Role,
		Bio:         m.Bio,
		ImageKey:    m.ImageKey,
		LinkedinURL: m.LinkedinURL,
		TwitterURL:  m.TwitterURL,
		OrderIndex:  m.OrderIndex,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
