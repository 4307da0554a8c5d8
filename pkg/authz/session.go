package authz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storyconnect/pkg/domain"
)

// State describes where a session's role set is in its lifecycle.
type State int

const (
	// Unauthenticated means no user is bound; every capability query
	// answers false.
	Unauthenticated State = iota
	// RolesLoading means a load is in flight; consumers must treat the
	// session as "not yet decided", never as denied or granted.
	RolesLoading
	// Ready means the materialized set is current for the bound user.
	Ready
)

func (s State) String() string {
	switch s {
	case RolesLoading:
		return "roles_loading"
	case Ready:
		return "ready"
	default:
		return "unauthenticated"
	}
}

const defaultLoadTimeout = 5 * time.Second

// SessionAuthorizer tracks one session's role set across sign-in,
// sign-out and role-change events. Role loads run asynchronously; a
// generation counter ties each load to the transition that started it
// so a result for a session that is no longer current is discarded
// instead of clobbering the successor's roles. At most one load per
// session is live: a new transition supersedes the in-flight one.
type SessionAuthorizer struct {
	store       RoleStore
	loadTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	state   State
	userID  string
	roles   RoleSet
	settled chan struct{} // closed when state leaves RolesLoading
}

// SessionOption customizes a SessionAuthorizer.
type SessionOption func(*SessionAuthorizer)

// WithLoadTimeout bounds each role load. On timeout the kernel fails
// closed with an empty set.
func WithLoadTimeout(d time.Duration) SessionOption {
	return func(a *SessionAuthorizer) {
		if d > 0 {
			a.loadTimeout = d
		}
	}
}

// NewSessionAuthorizer builds a kernel in the Unauthenticated state.
func NewSessionAuthorizer(store RoleStore, opts ...SessionOption) *SessionAuthorizer {
	a := &SessionAuthorizer{
		store:       store,
		loadTimeout: defaultLoadTimeout,
		state:       Unauthenticated,
		roles:       RoleSet{},
		settled:     closedChan(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetSession binds the kernel to a new user (or to nobody when userID
// is empty) and kicks off a fresh role load. Any in-flight load for a
// previous transition becomes stale and its result is dropped.
func (a *SessionAuthorizer) SetSession(userID string) {
	a.mu.Lock()
	a.gen++
	a.userID = userID
	a.roles = RoleSet{}
	if userID == "" {
		a.state = Unauthenticated
		a.settle()
		a.mu.Unlock()
		return
	}
	a.state = RolesLoading
	a.unsettle()
	gen := a.gen
	a.mu.Unlock()

	go a.load(gen, userID)
}

// ReloadRoles re-enters RolesLoading for the current user. Used when
// an external "roles changed" signal arrives mid-session.
func (a *SessionAuthorizer) ReloadRoles() {
	a.mu.Lock()
	if a.userID == "" {
		a.mu.Unlock()
		return
	}
	a.gen++
	a.state = RolesLoading
	a.roles = RoleSet{}
	a.unsettle()
	gen := a.gen
	userID := a.userID
	a.mu.Unlock()

	go a.load(gen, userID)
}

func (a *SessionAuthorizer) load(gen uint64, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.loadTimeout)
	defer cancel()

	roles, err := a.store.ListRoles(ctx, userID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		// A newer transition owns the session; this result is stale.
		return
	}
	if err != nil {
		// Fail closed: empty capability set, surfaced as a warning.
		// An error must never widen access.
		slog.Warn("role load failed, failing closed with empty role set",
			"user_id", userID, "err", err)
		a.roles = RoleSet{}
	} else {
		a.roles = NewRoleSet(roles...)
	}
	a.state = Ready
	a.settle()
}

// State returns the current lifecycle state.
func (a *SessionAuthorizer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// UserID returns the bound user, empty when unauthenticated.
func (a *SessionAuthorizer) UserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

// Roles returns a copy of the materialized stored set.
func (a *SessionAuthorizer) Roles() []domain.Role {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles.Roles()
}

// HasRole answers the capability query for the bound session. While
// loading (and when unauthenticated) it answers false; guards that
// must not show a false denial should consult State or WaitSettled
// before rendering a verdict.
func (a *SessionAuthorizer) HasRole(r domain.Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Ready {
		return false
	}
	return Has(a.roles, r)
}

// WaitSettled blocks until the kernel leaves RolesLoading or the
// context is done. Route guards use it to hold rendering instead of
// flashing protected content or a premature denial.
func (a *SessionAuthorizer) WaitSettled(ctx context.Context) error {
	for {
		a.mu.Lock()
		ch := a.settled
		state := a.state
		a.mu.Unlock()
		if state != RolesLoading {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// AssignRole grants a role through the store. When the grant is for
// the bound user and the set is materialized, the kernel's own view
// reflects it immediately.
func (a *SessionAuthorizer) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := a.store.AssignRole(ctx, userID, role); err != nil {
		return err
	}
	a.mu.Lock()
	if a.state == Ready && a.userID == userID {
		a.roles[role] = struct{}{}
	}
	a.mu.Unlock()
	return nil
}

// RevokeRole removes a grant; absent grants are a no-op success.
func (a *SessionAuthorizer) RevokeRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := a.store.RevokeRole(ctx, userID, role); err != nil {
		return err
	}
	a.mu.Lock()
	if a.state == Ready && a.userID == userID {
		delete(a.roles, role)
	}
	a.mu.Unlock()
	return nil
}

// settle marks the current transition decided. Callers hold a.mu.
func (a *SessionAuthorizer) settle() {
	select {
	case <-a.settled:
	default:
		close(a.settled)
	}
}

// unsettle opens a fresh gate for the next transition. Callers hold a.mu.
func (a *SessionAuthorizer) unsettle() {
	select {
	case <-a.settled:
		a.settled = make(chan struct{})
	default:
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
