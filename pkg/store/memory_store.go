package store

import (
	"context"
	"sort"
	"sync"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

// MemoryStore is an in-memory Store and authz.RoleStore used by tests
// and local development.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]domain.User
	roles         map[string]map[domain.Role]struct{}
	profiles      map[string]domain.Profile
	books         map[string]domain.Book
	chapters      map[string]domain.Chapter
	purchases     []domain.Purchase
	bookmarks     map[string]domain.Bookmark
	progress      map[string]domain.ReadingProgress // keyed userID+"/"+bookID
	favorites     map[string]domain.Favorite        // keyed userID+"/"+bookID
	follows       map[string]domain.Follow          // keyed followerID+"/"+authorID
	reviews       map[string]domain.Review          // keyed bookID+"/"+userID
	blogPosts     map[string]domain.BlogPost
	discussions   map[string]domain.Discussion
	replies       map[string][]domain.DiscussionReply
	founders      map[string]domain.Founder
	notifications map[string]domain.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		roles:         make(map[string]map[domain.Role]struct{}),
		profiles:      make(map[string]domain.Profile),
		books:         make(map[string]domain.Book),
		chapters:      make(map[string]domain.Chapter),
		bookmarks:     make(map[string]domain.Bookmark),
		progress:      make(map[string]domain.ReadingProgress),
		favorites:     make(map[string]domain.Favorite),
		follows:       make(map[string]domain.Follow),
		reviews:       make(map[string]domain.Review),
		blogPosts:     make(map[string]domain.BlogPost),
		discussions:   make(map[string]domain.Discussion),
		replies:       make(map[string][]domain.DiscussionReply),
		founders:      make(map[string]domain.Founder),
		notifications: make(map[string]domain.Notification),
	}
}

func pairKey(a, b string) string { return a + "/" + b }

// users

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// roles

func (s *MemoryStore) ListRoles(_ context.Context, userID string) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.roles[userID]
	res := make([]domain.Role, 0, len(set))
	for r := range set {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

func (s *MemoryStore) AssignRole(_ context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return authz.ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.roles[userID]
	if set == nil {
		set = make(map[domain.Role]struct{})
		s.roles[userID] = set
	}
	if _, ok := set[role]; ok {
		return authz.ErrDuplicateRole
	}
	set[role] = struct{}{}
	return nil
}

func (s *MemoryStore) RevokeRole(_ context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return authz.ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles[userID], role)
	return nil
}

// profiles

func (s *MemoryStore) SaveProfile(p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *MemoryStore) GetProfile(userID string) (domain.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok, nil
}

func (s *MemoryStore) ListWriterRequests() ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []domain.Profile
	for _, p := range s.profiles {
		if p.WriterRequestedAt != nil {
			requests = append(requests, p)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].WriterRequestedAt.After(*requests[j].WriterRequestedAt)
	})
	return requests, nil
}

// books

func (s *MemoryStore) SaveBook(b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b
	return nil
}

func (s *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	return b, ok, nil
}

func (s *MemoryStore) ListBooksByStatus(status domain.BookStatus) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Book
	for _, b := range s.books {
		if b.Status == status {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) ListBooksByAuthor(authorID string) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Book
	for _, b := range s.books {
		if b.AuthorID == authorID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, id)
	for cid, c := range s.chapters {
		if c.BookID == id {
			delete(s.chapters, cid)
		}
	}
	for k, b := range s.bookmarks {
		if b.BookID == id {
			delete(s.bookmarks, k)
		}
	}
	for k, p := range s.progress {
		if p.BookID == id {
			delete(s.progress, k)
		}
	}
	return nil
}

// chapters

func (s *MemoryStore) SaveChapter(c domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[c.ID] = c
	return nil
}

func (s *MemoryStore) GetChapter(id string) (domain.Chapter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chapters[id]
	return c, ok, nil
}

func (s *MemoryStore) GetChapterByNumber(bookID string, number int) (domain.Chapter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chapters {
		if c.BookID == bookID && c.Number == number {
			return c, true, nil
		}
	}
	return domain.Chapter{}, false, nil
}

func (s *MemoryStore) ListChapters(bookID string) ([]domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Chapter
	for _, c := range s.chapters {
		if c.BookID == bookID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Number < res[j].Number })
	return res, nil
}

func (s *MemoryStore) CountChapters(bookID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, c := range s.chapters {
		if c.BookID == bookID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteChapter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chapters, id)
	return nil
}

// purchases

func (s *MemoryStore) SavePurchase(p domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, p)
	return nil
}

func (s *MemoryStore) HasPurchase(userID, bookID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.purchases {
		if p.UserID == userID && p.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PurchasedAt.After(res[j].PurchasedAt) })
	return res, nil
}

// reading

func (s *MemoryStore) UpsertProgress(p domain.ReadingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[pairKey(p.UserID, p.BookID)] = p
	return nil
}

func (s *MemoryStore) ListProgressByUser(userID string) ([]domain.ReadingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.ReadingProgress
	for _, p := range s.progress {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastReadAt.After(res[j].LastReadAt) })
	return res, nil
}

func (s *MemoryStore) SaveBookmark(b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[b.ID] = b
	return nil
}

func (s *MemoryStore) DeleteBookmark(userID, chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.bookmarks {
		if b.UserID == userID && b.ChapterID == chapterID {
			delete(s.bookmarks, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListBookmarks(userID, bookID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Bookmark
	for _, b := range s.bookmarks {
		if b.UserID == userID && b.BookID == bookID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) SaveFavorite(f domain.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(f.UserID, f.BookID)
	if _, ok := s.favorites[key]; !ok {
		s.favorites[key] = f
	}
	return nil
}

func (s *MemoryStore) DeleteFavorite(userID, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites, pairKey(userID, bookID))
	return nil
}

func (s *MemoryStore) ListFavoritesByUser(userID string) ([]domain.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Favorite
	for _, f := range s.favorites {
		if f.UserID == userID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// follows

func (s *MemoryStore) SaveFollow(f domain.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(f.FollowerID, f.AuthorID)
	if _, ok := s.follows[key]; !ok {
		s.follows[key] = f
	}
	return nil
}

func (s *MemoryStore) DeleteFollow(followerID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows, pairKey(followerID, authorID))
	return nil
}

func (s *MemoryStore) ListFollowers(authorID string) ([]domain.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Follow
	for _, f := range s.follows {
		if f.AuthorID == authorID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].FollowerID < res[j].FollowerID })
	return res, nil
}

// reviews

func (s *MemoryStore) SaveReview(r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[pairKey(r.BookID, r.UserID)] = r
	return nil
}

func (s *MemoryStore) GetReviewByUser(bookID, userID string) (domain.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[pairKey(bookID, userID)]
	return r, ok, nil
}

func (s *MemoryStore) ListReviews(bookID string) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Review
	for _, r := range s.reviews {
		if r.BookID == bookID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// blog

func (s *MemoryStore) SaveBlogPost(p domain.BlogPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blogPosts[p.ID] = p
	return nil
}

func (s *MemoryStore) GetBlogPost(id string) (domain.BlogPost, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.blogPosts[id]
	return p, ok, nil
}

func (s *MemoryStore) ListBlogPosts() ([]domain.BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BlogPost, 0, len(s.blogPosts))
	for _, p := range s.blogPosts {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) DeleteBlogPost(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blogPosts, id)
	return nil
}

// discussions

func (s *MemoryStore) SaveDiscussion(d domain.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discussions[d.ID] = d
	return nil
}

func (s *MemoryStore) GetDiscussion(id string) (domain.Discussion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discussions[id]
	return d, ok, nil
}

func (s *MemoryStore) ListDiscussions() ([]domain.Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Discussion, 0, len(s.discussions))
	for _, d := range s.discussions {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) IncrementDiscussionViews(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return ErrNotFound
	}
	d.Views++
	s.discussions[id] = d
	return nil
}

func (s *MemoryStore) SaveReply(r domain.DiscussionReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[r.DiscussionID] = append(s.replies[r.DiscussionID], r)
	return nil
}

func (s *MemoryStore) ListReplies(discussionID string) ([]domain.DiscussionReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.DiscussionReply, len(s.replies[discussionID]))
	copy(res, s.replies[discussionID])
	return res, nil
}

// founders

func (s *MemoryStore) SaveFounder(f domain.Founder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.founders[f.ID] = f
	return nil
}

func (s *MemoryStore) ListFounders() ([]domain.Founder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Founder, 0, len(s.founders))
	for _, f := range s.founders {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OrderIndex < res[j].OrderIndex })
	return res, nil
}

func (s *MemoryStore) DeleteFounder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.founders, id)
	return nil
}

// notifications

func (s *MemoryStore) SaveNotification(n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return nil
}

func (s *MemoryStore) ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStore) MarkNotificationRead(id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}
