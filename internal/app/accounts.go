package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"storyconnect/internal/util"
	"storyconnect/pkg/auth"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/storage"
	"storyconnect/pkg/store"
)

// SignUp registers a new account. The requested role may be writer or
// reader; admin is never self-assignable. Empty means reader.
func (a *App) SignUp(ctx context.Context, email, password, fullName, requestedRole string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", "", err
	}

	role := domain.RoleReader
	if raw := strings.TrimSpace(requestedRole); raw != "" {
		parsed, ok := domain.ParseRole(raw)
		if !ok {
			return domain.User{}, "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
		}
		if parsed == domain.RoleAdmin {
			return domain.User{}, "", "", ErrRoleNotSelfAssignable
		}
		role = parsed
	}

	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", "", ErrEmailAlreadyExists
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("create user: %w", err)
	}
	if err := a.roles.AssignRole(ctx, user.ID, role); err != nil && !errors.Is(err, authz.ErrDuplicateRole) {
		return domain.User{}, "", "", fmt.Errorf("assign role: %w", err)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName != "" || role == domain.RoleWriter {
		profile := domain.Profile{UserID: user.ID, FullName: fullName, CreatedAt: now, UpdatedAt: now}
		if role == domain.RoleWriter {
			// Writer accounts go on the admin approval queue.
			profile.WriterRequestedAt = &now
		}
		if err := a.store.SaveProfile(profile); err != nil {
			return domain.User{}, "", "", fmt.Errorf("create profile: %w", err)
		}
	}

	accessToken, refreshToken, err := a.issueTokens(user.ID)
	if err != nil {
		return domain.User{}, "", "", err
	}
	return user, accessToken, refreshToken, nil
}

// Login validates credentials and issues a token pair.
func (a *App) Login(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, "", "", ErrUserDisabled
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	accessToken, refreshToken, err := a.issueTokens(user.ID)
	if err != nil {
		return domain.User{}, "", "", err
	}
	return user, accessToken, refreshToken, nil
}

// Logout invalidates the access token and the refresh token family.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return err
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		return a.refreshTokens.DeleteToken(refreshToken)
	}
	return nil
}

// Refresh rotates the refresh token and issues a new token pair.
func (a *App) Refresh(refreshToken string) (domain.User, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", "", ErrRefreshTokenRequired
	}
	userID, newRefreshToken, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, "", "", ErrInvalidRefreshToken
		}
		return domain.User{}, "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !found || user.Status == domain.StatusDisabled {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	return user, accessToken, newRefreshToken, nil
}

// IdentityFromToken resolves the caller's identity, roles included.
// A role lookup failure fails closed: the caller stays authenticated
// but holds no roles.
func (a *App) IdentityFromToken(ctx context.Context, token string) (authz.Identity, bool) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return authz.Identity{}, false
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil || !found {
		return authz.Identity{}, false
	}
	if user.Status == domain.StatusDisabled {
		return authz.Identity{}, false
	}
	roles, err := a.roles.ListRoles(ctx, user.ID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("role load failed, continuing with no roles",
			"user_id", user.ID, "error", err)
		roles = nil
	}
	return authz.Identity{User: user, Roles: authz.NewRoleSet(roles...)}, true
}

// ChangePassword verifies the current password, stores the new one,
// and revokes every outstanding session and refresh token.
func (a *App) ChangePassword(userID, currentPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	user.PasswordHash, err = auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(userID, time.Now().UTC()); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
	}
	return a.refreshTokens.RevokeUserTokens(userID)
}

// GetProfile returns a user's public profile.
func (a *App) GetProfile(userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	return profile, nil
}

// UpdateProfile stores the caller's display name and bio.
func (a *App) UpdateProfile(userID, fullName, bio string) (domain.Profile, error) {
	now := time.Now().UTC()
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		profile = domain.Profile{UserID: userID, CreatedAt: now}
	}
	profile.FullName = strings.TrimSpace(fullName)
	profile.Bio = strings.TrimSpace(bio)
	profile.UpdatedAt = now
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// SetAvatar uploads the caller's avatar to object storage.
func (a *App) SetAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (domain.Profile, error) {
	if a.objects == nil {
		return domain.Profile{}, fmt.Errorf("%w: object storage not configured", ErrInvalidInput)
	}
	key := storage.AvatarKey(userID)
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Profile{}, fmt.Errorf("store avatar: %w", err)
	}
	now := time.Now().UTC()
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		profile = domain.Profile{UserID: userID, CreatedAt: now}
	}
	profile.AvatarKey = key
	profile.UpdatedAt = now
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// AvatarURL returns a short-lived URL for a profile's avatar, or empty
// when none is set.
func (a *App) AvatarURL(ctx context.Context, profile domain.Profile) (string, error) {
	if a.objects == nil || profile.AvatarKey == "" {
		return "", nil
	}
	return a.objects.PresignGet(ctx, profile.AvatarKey, 15*time.Minute)
}
