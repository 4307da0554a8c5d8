package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/store"
)

// AssignRole grants a role to a user. Admin only; the capability is
// re-checked here so no handler shortcut can bypass it.
func (a *App) AssignRole(ctx context.Context, caller authz.Identity, targetUserID, rawRole string) error {
	if !caller.HasRole(domain.RoleAdmin) {
		return ErrForbidden
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, rawRole)
	}
	if _, found, err := a.store.GetUserByID(targetUserID); err != nil {
		return fmt.Errorf("fetch user: %w", err)
	} else if !found {
		return ErrNotFound
	}
	if err := a.roles.AssignRole(ctx, targetUserID, role); err != nil {
		if errors.Is(err, authz.ErrDuplicateRole) {
			// Surfaced as-is so the admin UI can say "already has
			// this role" instead of pretending the grant happened.
			return err
		}
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role grant. Admin only. Revoking a role the
// user does not hold is a no-op.
func (a *App) RevokeRole(ctx context.Context, caller authz.Identity, targetUserID, rawRole string) error {
	if !caller.HasRole(domain.RoleAdmin) {
		return ErrForbidden
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, rawRole)
	}
	return a.roles.RevokeRole(ctx, targetUserID, role)
}

// ListUserRoles returns the stored grants for a user. Admins can read
// anyone; everyone else only themselves.
func (a *App) ListUserRoles(ctx context.Context, caller authz.Identity, targetUserID string) ([]domain.Role, error) {
	if caller.User.ID != targetUserID && !caller.HasRole(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	roles, err := a.roles.ListRoles(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// ListUsers returns all accounts. Admin only.
func (a *App) ListUsers(caller authz.Identity) ([]domain.User, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return a.store.ListUsers()
}

// SetUserStatus enables or disables an account. Disabling also kills
// the user's sessions and refresh tokens. Admin only.
func (a *App) SetUserStatus(caller authz.Identity, targetUserID string, status domain.UserStatus) error {
	if !caller.HasRole(domain.RoleAdmin) {
		return ErrForbidden
	}
	if status != domain.StatusActive && status != domain.StatusDisabled {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	user, ok, err := a.store.GetUserByID(targetUserID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	user.Status = status
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if status == domain.StatusDisabled {
		if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
			if err := revoker.RevokeUserSessions(targetUserID, time.Now().UTC()); err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
		}
		return a.refreshTokens.RevokeUserTokens(targetUserID)
	}
	return nil
}
