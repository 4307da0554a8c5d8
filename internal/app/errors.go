package app

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not enable
	// account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrUserDisabled is logged but not exposed to clients.
	ErrUserDisabled = errors.New("user disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrRefreshTokenRequired     = errors.New("refresh token required")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")

	// ErrForbidden means the caller's roles do not cover the
	// capability, or the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	ErrNotFound = errors.New("not found")

	ErrInvalidInput = errors.New("invalid input")

	// ErrRoleNotSelfAssignable rejects signup attempts that claim the
	// admin role.
	ErrRoleNotSelfAssignable = errors.New("role cannot be chosen at signup")

	// ErrFreePreviewTooLarge rejects a free-chapter threshold above the
	// book's chapter count.
	ErrFreePreviewTooLarge = errors.New("free chapters cannot exceed total chapters")

	// ErrRateLimited is returned when an operation hit its quota.
	ErrRateLimited = errors.New("too many requests")
)
