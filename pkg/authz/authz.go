// Package authz is the authorization kernel: it materializes a user's
// role assignments and answers capability queries under the fixed
// admin ⊇ writer ⊇ reader hierarchy. The hierarchy lives here and
// only here; call sites must never reimplement it inline.
package authz

import (
	"context"
	"errors"

	"storyconnect/pkg/domain"
)

var (
	// ErrDuplicateRole is returned when a (user, role) grant already
	// exists. Re-grants are rejected, not merged, so callers can tell
	// "already had it" apart from "just granted".
	ErrDuplicateRole = errors.New("role already assigned")

	// ErrInvalidRole is returned for values outside the closed enum.
	ErrInvalidRole = errors.New("invalid role")
)

// RoleStore persists (user, role) assignments. Loads take a context
// because the kernel issues them asynchronously and cancels the ones
// a newer session transition has superseded.
type RoleStore interface {
	ListRoles(ctx context.Context, userID string) ([]domain.Role, error)
	// AssignRole inserts a grant; a duplicate pair fails with ErrDuplicateRole.
	AssignRole(ctx context.Context, userID string, role domain.Role) error
	// RevokeRole deletes a grant; revoking an absent role is a no-op success.
	RevokeRole(ctx context.Context, userID string, role domain.Role) error
}

// RoleSet is a materialized set of stored (not effective) roles.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a set from stored assignments, dropping any value
// outside the closed enum.
func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// Contains reports raw membership, without the hierarchy applied.
func (s RoleSet) Contains(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the stored roles in unspecified order.
func (s RoleSet) Roles() []domain.Role {
	out := make([]domain.Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}

// Has answers the capability query against the effective set:
// r is granted iff r is stored, or admin is stored and r is writer or
// reader, or writer is stored and r is reader.
func Has(stored RoleSet, r domain.Role) bool {
	if stored.Contains(r) {
		return true
	}
	switch r {
	case domain.RoleWriter:
		return stored.Contains(domain.RoleAdmin)
	case domain.RoleReader:
		return stored.Contains(domain.RoleAdmin) || stored.Contains(domain.RoleWriter)
	default:
		return false
	}
}

// Identity couples a resolved user with their stored role set for the
// duration of one request. A zero Identity is anonymous.
type Identity struct {
	User  domain.User
	Roles RoleSet
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (id Identity) Authenticated() bool {
	return id.User.ID != ""
}

// HasRole evaluates the capability query for this identity.
func (id Identity) HasRole(r domain.Role) bool {
	if !id.Authenticated() {
		return false
	}
	return Has(id.Roles, r)
}
