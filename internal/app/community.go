package app

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"storyconnect/internal/util"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

// SubmitReview creates or replaces the caller's review of a book.
// One review per user per book; resubmitting overwrites in place.
func (a *App) SubmitReview(caller authz.Identity, bookID string, rating int, comment string) (domain.Review, error) {
	if !caller.Authenticated() {
		return domain.Review{}, ErrForbidden
	}
	if rating < 1 || rating > 5 {
		return domain.Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Status != domain.BookPublished {
		return domain.Review{}, ErrNotFound
	}
	now := time.Now().UTC()
	review, exists, err := a.store.GetReviewByUser(bookID, caller.User.ID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch review: %w", err)
	}
	if !exists {
		review = domain.Review{
			ID:        util.NewID(),
			BookID:    bookID,
			UserID:    caller.User.ID,
			CreatedAt: now,
		}
	}
	review.Rating = rating
	review.Comment = strings.TrimSpace(comment)
	review.UpdatedAt = now
	if err := a.store.SaveReview(review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	return review, nil
}

// ListReviews returns all reviews for a book, newest first.
func (a *App) ListReviews(bookID string) ([]domain.Review, error) {
	return a.store.ListReviews(bookID)
}

// BlogPostInput carries writer-editable blog post fields. Content is
// HTML; the excerpt and reading time are derived from it on save.
type BlogPostInput struct {
	Title    string
	Category string
	Content  string
}

// CreateBlogPost publishes a blog post. Writer capability required.
func (a *App) CreateBlogPost(caller authz.Identity, input BlogPostInput) (domain.BlogPost, error) {
	if !caller.HasRole(domain.RoleWriter) {
		return domain.BlogPost{}, ErrForbidden
	}
	if err := validateBlogInput(input); err != nil {
		return domain.BlogPost{}, err
	}
	now := time.Now().UTC()
	post := domain.BlogPost{
		ID:          util.NewID(),
		AuthorID:    caller.User.ID,
		PublishedAt: &now,
		CreatedAt:   now,
	}
	applyBlogInput(&post, input, now)
	if err := a.store.SaveBlogPost(post); err != nil {
		return domain.BlogPost{}, fmt.Errorf("save blog post: %w", err)
	}
	return post, nil
}

// UpdateBlogPost edits a post. Only the author or an admin may edit.
func (a *App) UpdateBlogPost(caller authz.Identity, postID string, input BlogPostInput) (domain.BlogPost, error) {
	post, err := a.editableBlogPost(caller, postID)
	if err != nil {
		return domain.BlogPost{}, err
	}
	if err := validateBlogInput(input); err != nil {
		return domain.BlogPost{}, err
	}
	applyBlogInput(&post, input, time.Now().UTC())
	if err := a.store.SaveBlogPost(post); err != nil {
		return domain.BlogPost{}, fmt.Errorf("save blog post: %w", err)
	}
	return post, nil
}

// DeleteBlogPost removes a post.
func (a *App) DeleteBlogPost(caller authz.Identity, postID string) error {
	if _, err := a.editableBlogPost(caller, postID); err != nil {
		return err
	}
	if err := a.store.DeleteBlogPost(postID); err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	return nil
}

// GetBlogPost returns one post.
func (a *App) GetBlogPost(postID string) (domain.BlogPost, error) {
	post, ok, err := a.store.GetBlogPost(postID)
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("fetch blog post: %w", err)
	}
	if !ok {
		return domain.BlogPost{}, ErrNotFound
	}
	return post, nil
}

// ListBlogPosts returns all posts, newest first.
func (a *App) ListBlogPosts() ([]domain.BlogPost, error) {
	return a.store.ListBlogPosts()
}

func (a *App) editableBlogPost(caller authz.Identity, postID string) (domain.BlogPost, error) {
	post, ok, err := a.store.GetBlogPost(postID)
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("fetch blog post: %w", err)
	}
	if !ok {
		return domain.BlogPost{}, ErrNotFound
	}
	if !caller.HasRole(domain.RoleAdmin) &&
		!(caller.HasRole(domain.RoleWriter) && caller.User.ID == post.AuthorID) {
		return domain.BlogPost{}, ErrForbidden
	}
	return post, nil
}

func validateBlogInput(input BlogPostInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("%w: content required", ErrInvalidInput)
	}
	return nil
}

func applyBlogInput(post *domain.BlogPost, input BlogPostInput, now time.Time) {
	post.Title = strings.TrimSpace(input.Title)
	post.Category = strings.TrimSpace(input.Category)
	post.Content = input.Content
	text := htmlText(input.Content)
	post.Excerpt = excerptOf(text, 200)
	post.ReadMinutes = readMinutes(text)
	post.UpdatedAt = now
}

// htmlText strips markup from an HTML fragment, keeping the visible
// text. The tokenizer is forgiving, so malformed input degrades to
// whatever text it can find rather than erroring.
func htmlText(content string) string {
	tz := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tz.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tz.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// excerptOf truncates text to at most max runes, cutting at a word
// boundary when possible.
func excerptOf(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

// readMinutes estimates reading time at 200 words per minute, with a
// one minute floor for non-empty text.
func readMinutes(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	minutes := (words + 199) / 200
	return minutes
}

// DiscussionInput carries the editable fields of a discussion thread.
type DiscussionInput struct {
	Category string
	Title    string
	Content  string
}

// CreateDiscussion opens a community thread. Any signed-in user may
// post.
func (a *App) CreateDiscussion(caller authz.Identity, input DiscussionInput) (domain.Discussion, error) {
	if !caller.Authenticated() {
		return domain.Discussion{}, ErrForbidden
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Content) == "" {
		return domain.Discussion{}, fmt.Errorf("%w: title and content required", ErrInvalidInput)
	}
	now := time.Now().UTC()
	discussion := domain.Discussion{
		ID:        util.NewID(),
		AuthorID:  caller.User.ID,
		Category:  strings.TrimSpace(input.Category),
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveDiscussion(discussion); err != nil {
		return domain.Discussion{}, fmt.Errorf("save discussion: %w", err)
	}
	return discussion, nil
}

// GetDiscussion returns one thread and counts the view.
func (a *App) GetDiscussion(discussionID string) (domain.Discussion, error) {
	discussion, ok, err := a.store.GetDiscussion(discussionID)
	if err != nil {
		return domain.Discussion{}, fmt.Errorf("fetch discussion: %w", err)
	}
	if !ok {
		return domain.Discussion{}, ErrNotFound
	}
	if err := a.store.IncrementDiscussionViews(discussionID); err != nil {
		return domain.Discussion{}, fmt.Errorf("count view: %w", err)
	}
	discussion.Views++
	return discussion, nil
}

// ListDiscussions returns all threads, newest first.
func (a *App) ListDiscussions() ([]domain.Discussion, error) {
	return a.store.ListDiscussions()
}

// LikeDiscussion bumps the like counter on a thread.
func (a *App) LikeDiscussion(caller authz.Identity, discussionID string) (domain.Discussion, error) {
	if !caller.Authenticated() {
		return domain.Discussion{}, ErrForbidden
	}
	discussion, ok, err := a.store.GetDiscussion(discussionID)
	if err != nil {
		return domain.Discussion{}, fmt.Errorf("fetch discussion: %w", err)
	}
	if !ok {
		return domain.Discussion{}, ErrNotFound
	}
	discussion.Likes++
	discussion.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveDiscussion(discussion); err != nil {
		return domain.Discussion{}, fmt.Errorf("save discussion: %w", err)
	}
	return discussion, nil
}

// ReplyToDiscussion appends a reply to a thread.
func (a *App) ReplyToDiscussion(caller authz.Identity, discussionID, content string) (domain.DiscussionReply, error) {
	if !caller.Authenticated() {
		return domain.DiscussionReply{}, ErrForbidden
	}
	if strings.TrimSpace(content) == "" {
		return domain.DiscussionReply{}, fmt.Errorf("%w: content required", ErrInvalidInput)
	}
	if _, ok, err := a.store.GetDiscussion(discussionID); err != nil {
		return domain.DiscussionReply{}, fmt.Errorf("fetch discussion: %w", err)
	} else if !ok {
		return domain.DiscussionReply{}, ErrNotFound
	}
	reply := domain.DiscussionReply{
		ID:           util.NewID(),
		DiscussionID: discussionID,
		AuthorID:     caller.User.ID,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveReply(reply); err != nil {
		return domain.DiscussionReply{}, fmt.Errorf("save reply: %w", err)
	}
	return reply, nil
}

// ListReplies returns a thread's replies, oldest first.
func (a *App) ListReplies(discussionID string) ([]domain.DiscussionReply, error) {
	return a.store.ListReplies(discussionID)
}

// FounderInput carries the editable fields of a founder profile shown
// on the about page.
type FounderInput struct {
	Name        string
	Role        string
	Bio         string
	LinkedinURL string
	TwitterURL  string
	OrderIndex  int
}

// SaveFounder creates or updates a founder entry. Admin only. An
// empty ID creates a new entry.
func (a *App) SaveFounder(caller authz.Identity, id string, input FounderInput) (domain.Founder, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return domain.Founder{}, ErrForbidden
	}
	if strings.TrimSpace(input.Name) == "" {
		return domain.Founder{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	now := time.Now().UTC()
	founder := domain.Founder{ID: id, CreatedAt: now}
	if id != "" {
		existing, ok, err := a.findFounder(id)
		if err != nil {
			return domain.Founder{}, err
		}
		if !ok {
			return domain.Founder{}, ErrNotFound
		}
		founder = existing
	} else {
		founder.ID = util.NewID()
	}
	founder.Name = strings.TrimSpace(input.Name)
	founder.Role = strings.TrimSpace(input.Role)
	founder.Bio = strings.TrimSpace(input.Bio)
	founder.LinkedinURL = strings.TrimSpace(input.LinkedinURL)
	founder.TwitterURL = strings.TrimSpace(input.TwitterURL)
	founder.OrderIndex = input.OrderIndex
	founder.UpdatedAt = now
	if err := a.store.SaveFounder(founder); err != nil {
		return domain.Founder{}, fmt.Errorf("save founder: %w", err)
	}
	return founder, nil
}

// DeleteFounder removes a founder entry. Admin only.
func (a *App) DeleteFounder(caller authz.Identity, id string) error {
	if !caller.HasRole(domain.RoleAdmin) {
		return ErrForbidden
	}
	if err := a.store.DeleteFounder(id); err != nil {
		return fmt.Errorf("delete founder: %w", err)
	}
	return nil
}

// ListFounders returns founder entries in display order.
func (a *App) ListFounders() ([]domain.Founder, error) {
	return a.store.ListFounders()
}

func (a *App) findFounder(id string) (domain.Founder, bool, error) {
	founders, err := a.store.ListFounders()
	if err != nil {
		return domain.Founder{}, false, fmt.Errorf("list founders: %w", err)
	}
	for _, f := range founders {
		if f.ID == id {
			return f, true, nil
		}
	}
	return domain.Founder{}, false, nil
}
