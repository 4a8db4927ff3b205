package backend

import "errors"

var (
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no identity record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when signup reuses a registered email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotAuthenticated is returned by session-scoped calls without a
	// current session.
	ErrNotAuthenticated = errors.New("no active session")
	// ErrSessionRevoked is returned when the server-side session row is
	// gone during refresh.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrVerificationInvalid is returned for an unknown or expired
	// email-verification token.
	ErrVerificationInvalid = errors.New("verification token invalid or expired")
	// ErrOTPInvalid is returned for a wrong one-time code.
	ErrOTPInvalid = errors.New("one-time code invalid")
	// ErrOTPExpired is returned when the one-time code outlived its TTL.
	ErrOTPExpired = errors.New("one-time code expired")
	// ErrOTPAttemptsExceeded is returned after too many wrong codes; the
	// challenge is destroyed.
	ErrOTPAttemptsExceeded = errors.New("one-time code attempts exceeded")
	// ErrProfileExists guards the one-time onboarding write.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound is returned when patching a profile that was
	// never created.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrStorageUnavailable wraps redis transport failures.
	ErrStorageUnavailable = errors.New("identity storage unavailable")
)
