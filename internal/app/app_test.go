package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/payments"
	"storyconnect/pkg/queue"
	"storyconnect/pkg/store"
)

// memorySessions is an opaque-token session store for tests.
type memorySessions struct {
	mu     sync.Mutex
	tokens map[string]string
	n      int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{tokens: make(map[string]string)}
}

func (s *memorySessions) NewSession(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	token := fmt.Sprintf("session-%d", s.n)
	s.tokens[token] = userID
	return token, nil
}

func (s *memorySessions) GetUserIDByToken(token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	return userID, ok, nil
}

func (s *memorySessions) DeleteSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *memorySessions) RevokeUserSessions(userID string, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.tokens {
		if owner == userID {
			delete(s.tokens, token)
		}
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ChapterPublished
}

func (p *fakePublisher) Publish(_ context.Context, event queue.ChapterPublished) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []queue.ChapterPublished {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ChapterPublished(nil), p.events...)
}

type fakeCheckout struct {
	params []payments.CheckoutParams
	err    error
}

func (c *fakeCheckout) CreateSession(_ context.Context, params payments.CheckoutParams) (payments.CheckoutSession, error) {
	if c.err != nil {
		return payments.CheckoutSession{}, c.err
	}
	c.params = append(c.params, params)
	return payments.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", len(c.params)),
		URL: "https://checkout.test/session",
	}, nil
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) GenerateText(context.Context, string, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type testEnv struct {
	app       *App
	store     *store.MemoryStore
	publisher *fakePublisher
	checkout  *fakeCheckout
	generator *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	publisher := &fakePublisher{}
	checkout := &fakeCheckout{}
	generator := &fakeGenerator{reply: "assistant says hi"}
	a, err := New(Config{
		Store:          ms,
		Roles:          ms,
		Sessions:       newMemorySessions(),
		RefreshTokens:  store.NewMemoryRefreshTokenStore(),
		Generator:      generator,
		Checkout:       checkout,
		Events:         publisher,
		CheckoutOrigin: "https://app.test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{app: a, store: ms, publisher: publisher, checkout: checkout, generator: generator}
}

// signUp registers a user and returns an identity with roles loaded.
func (e *testEnv) signUp(t *testing.T, email, role string) authz.Identity {
	t.Helper()
	ctx := context.Background()
	user, _, _, err := e.app.SignUp(ctx, email, "correct horse 9", "Test User", role)
	if err != nil {
		t.Fatalf("SignUp(%s): %v", email, err)
	}
	return e.identity(t, user.ID)
}

func (e *testEnv) identity(t *testing.T, userID string) authz.Identity {
	t.Helper()
	user, ok, err := e.store.GetUserByID(userID)
	if err != nil || !ok {
		t.Fatalf("GetUserByID(%s): ok=%v err=%v", userID, ok, err)
	}
	roles, err := e.store.ListRoles(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListRoles(%s): %v", userID, err)
	}
	return authz.Identity{User: user, Roles: authz.NewRoleSet(roles...)}
}

// grantAdmin promotes an existing user directly through the store.
func (e *testEnv) grantAdmin(t *testing.T, userID string) authz.Identity {
	t.Helper()
	if err := e.store.AssignRole(context.Background(), userID, domain.RoleAdmin); err != nil {
		t.Fatalf("AssignRole admin: %v", err)
	}
	return e.identity(t, userID)
}
