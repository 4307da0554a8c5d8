package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyconnect/pkg/domain"
)

// fakeRoleStore lets tests stall individual loads to force orderings.
type fakeRoleStore struct {
	mu      sync.Mutex
	roles   map[string][]domain.Role
	errs    map[string]error
	release map[string]chan struct{}
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		roles:   make(map[string][]domain.Role),
		errs:    make(map[string]error),
		release: make(map[string]chan struct{}),
	}
}

func (f *fakeRoleStore) set(userID string, roles ...domain.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = roles
}

func (f *fakeRoleStore) stall(userID string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.release[userID] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeRoleStore) ListRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	f.mu.Lock()
	gate := f.release[userID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	out := make([]domain.Role, len(f.roles[userID]))
	copy(out, f.roles[userID])
	return out, nil
}

func (f *fakeRoleStore) AssignRole(_ context.Context, userID string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles[userID] {
		if r == role {
			return ErrDuplicateRole
		}
	}
	f.roles[userID] = append(f.roles[userID], role)
	return nil
}

func (f *fakeRoleStore) RevokeRole(_ context.Context, userID string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.roles[userID][:0]
	for _, r := range f.roles[userID] {
		if r != role {
			kept = append(kept, r)
		}
	}
	f.roles[userID] = kept
	return nil
}

func settle(t *testing.T, a *SessionAuthorizer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.WaitSettled(ctx); err != nil {
		t.Fatalf("wait settled: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleWriter)
	a := NewSessionAuthorizer(store)

	if a.State() != Unauthenticated {
		t.Fatalf("initial state = %s", a.State())
	}
	if a.HasRole(domain.RoleReader) {
		t.Fatal("unauthenticated session granted reader")
	}

	a.SetSession("u1")
	settle(t, a)
	if a.State() != Ready {
		t.Fatalf("state after load = %s", a.State())
	}
	if !a.HasRole(domain.RoleWriter) || !a.HasRole(domain.RoleReader) {
		t.Fatal("writer session should have writer and reader capability")
	}
	if a.HasRole(domain.RoleAdmin) {
		t.Fatal("writer session should not have admin capability")
	}

	a.SetSession("")
	if a.State() != Unauthenticated {
		t.Fatalf("state after sign-out = %s", a.State())
	}
	if a.HasRole(domain.RoleReader) {
		t.Fatal("signed-out session retained capability")
	}
}

func TestHasRoleFalseWhileLoading(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleAdmin)
	gate := store.stall("u1")

	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	if a.State() != RolesLoading {
		t.Fatalf("state = %s, want roles_loading", a.State())
	}
	if a.HasRole(domain.RoleAdmin) {
		t.Fatal("capability granted before roles settled")
	}
	close(gate)
	settle(t, a)
	if !a.HasRole(domain.RoleAdmin) {
		t.Fatal("capability missing after roles settled")
	}
}

func TestStaleLoadDiscardedOnRapidTransition(t *testing.T) {
	store := newFakeRoleStore()
	store.set("alice", domain.RoleAdmin)
	store.set("bob", domain.RoleReader)
	aliceGate := store.stall("alice")

	a := NewSessionAuthorizer(store)
	a.SetSession("alice")
	// Bob signs in while Alice's load is still in flight.
	a.SetSession("bob")
	settle(t, a)

	// Alice's load completes late; its result must be dropped.
	close(aliceGate)
	time.Sleep(50 * time.Millisecond)

	if a.UserID() != "bob" {
		t.Fatalf("bound user = %q, want bob", a.UserID())
	}
	if a.HasRole(domain.RoleAdmin) {
		t.Fatal("stale admin roles from alice applied to bob's session")
	}
	if !a.HasRole(domain.RoleReader) {
		t.Fatal("bob's roles missing")
	}
}

func TestStaleLoadDiscardedAfterSignOut(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleAdmin)
	gate := store.stall("u1")

	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	a.SetSession("")
	close(gate)
	time.Sleep(50 * time.Millisecond)

	if a.State() != Unauthenticated {
		t.Fatalf("state = %s, want unauthenticated", a.State())
	}
	if a.HasRole(domain.RoleAdmin) {
		t.Fatal("roles applied after sign-out")
	}
}

func TestLoadFailureFailsClosed(t *testing.T) {
	store := newFakeRoleStore()
	store.errs["u1"] = errors.New("store unreachable")

	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	settle(t, a)

	if a.State() != Ready {
		t.Fatalf("state = %s, want ready", a.State())
	}
	if len(a.Roles()) != 0 {
		t.Fatalf("roles = %v, want empty", a.Roles())
	}
	if a.HasRole(domain.RoleReader) {
		t.Fatal("store failure granted capability")
	}
}

func TestLoadTimeoutFailsClosed(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleAdmin)
	gate := store.stall("u1")
	defer close(gate)

	a := NewSessionAuthorizer(store, WithLoadTimeout(30*time.Millisecond))
	a.SetSession("u1")
	settle(t, a)

	if a.HasRole(domain.RoleAdmin) {
		t.Fatal("timed-out load granted capability")
	}
}

func TestAssignRoleVisibleImmediately(t *testing.T) {
	store := newFakeRoleStore()
	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	settle(t, a)

	if err := a.AssignRole(context.Background(), "u1", domain.RoleWriter); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !a.HasRole(domain.RoleWriter) {
		t.Fatal("assigned role not visible in kernel's own view")
	}
}

func TestAssignRoleDuplicateRejected(t *testing.T) {
	store := newFakeRoleStore()
	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	settle(t, a)

	if err := a.AssignRole(context.Background(), "u1", domain.RoleReader); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	before := len(a.Roles())
	err := a.AssignRole(context.Background(), "u1", domain.RoleReader)
	if !errors.Is(err, ErrDuplicateRole) {
		t.Fatalf("second assign err = %v, want ErrDuplicateRole", err)
	}
	if len(a.Roles()) != before {
		t.Fatalf("role set size changed on duplicate grant")
	}
}

func TestRevokeAbsentRoleIsNoop(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleReader)
	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	settle(t, a)

	if err := a.RevokeRole(context.Background(), "u1", domain.RoleWriter); err != nil {
		t.Fatalf("revoking absent role: %v", err)
	}
	if !a.HasRole(domain.RoleReader) {
		t.Fatal("unrelated role lost on no-op revoke")
	}
}

func TestAssignRejectsUnknownRole(t *testing.T) {
	a := NewSessionAuthorizer(newFakeRoleStore())
	err := a.AssignRole(context.Background(), "u1", domain.Role("root"))
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestReloadRolesPicksUpRevocation(t *testing.T) {
	store := newFakeRoleStore()
	store.set("u1", domain.RoleWriter)
	a := NewSessionAuthorizer(store)
	a.SetSession("u1")
	settle(t, a)
	if !a.HasRole(domain.RoleWriter) {
		t.Fatal("initial writer capability missing")
	}

	// Admin revokes mid-session; the external signal triggers a reload.
	store.set("u1")
	a.ReloadRoles()
	settle(t, a)
	if a.HasRole(domain.RoleWriter) {
		t.Fatal("revoked role survived reload")
	}
}
