package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

// ListWriterRequests returns the writer-approval queue, newest request
// first. Admin only.
func (a *App) ListWriterRequests(caller authz.Identity) ([]domain.Profile, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	requests, err := a.store.ListWriterRequests()
	if err != nil {
		return nil, fmt.Errorf("list writer requests: %w", err)
	}
	return requests, nil
}

// ApproveWriter marks a pending writer request approved and makes sure
// the writer role is granted. Admin only.
func (a *App) ApproveWriter(ctx context.Context, caller authz.Identity, targetUserID string) (domain.Profile, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return domain.Profile{}, ErrForbidden
	}
	profile, ok, err := a.store.GetProfile(targetUserID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok || profile.WriterRequestedAt == nil {
		return domain.Profile{}, ErrNotFound
	}
	profile.WriterApproved = true
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	// The role is usually already held from signup; a re-grant after a
	// previous rejection must still succeed.
	if err := a.roles.AssignRole(ctx, targetUserID, domain.RoleWriter); err != nil && !errors.Is(err, authz.ErrDuplicateRole) {
		return domain.Profile{}, fmt.Errorf("grant writer role: %w", err)
	}
	return profile, nil
}

// RejectWriter revokes the writer role and clears the request so the
// account drops off the approval queue. Admin only.
func (a *App) RejectWriter(ctx context.Context, caller authz.Identity, targetUserID string) (domain.Profile, error) {
	if !caller.HasRole(domain.RoleAdmin) {
		return domain.Profile{}, ErrForbidden
	}
	profile, ok, err := a.store.GetProfile(targetUserID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok || profile.WriterRequestedAt == nil {
		return domain.Profile{}, ErrNotFound
	}
	if err := a.roles.RevokeRole(ctx, targetUserID, domain.RoleWriter); err != nil {
		return domain.Profile{}, fmt.Errorf("revoke writer role: %w", err)
	}
	profile.WriterApproved = false
	profile.WriterRequestedAt = nil
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}
