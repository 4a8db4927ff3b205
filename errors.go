package civiauth

import "errors"

var (
	// ErrStoreClosed is returned by actions invoked after Close.
	ErrStoreClosed = errors.New("session store closed")
	// ErrNotAuthenticated is returned by actions that require a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmailRequired rejects an empty email before any backend call.
	ErrEmailRequired = errors.New("email required")
	// ErrPasswordRequired rejects an empty password before any backend call.
	ErrPasswordRequired = errors.New("password required")
	// ErrCodeRequired rejects an empty one-time code before any backend call.
	ErrCodeRequired = errors.New("one-time code required")
	// ErrTokenRequired rejects an empty verification token before any
	// backend call.
	ErrTokenRequired = errors.New("verification token required")
	// ErrProfileFieldsRequired rejects a profile creation request missing
	// mandatory fields.
	ErrProfileFieldsRequired = errors.New("profile fields required")
	// ErrProfileEmptyPatch rejects a profile update that changes nothing.
	ErrProfileEmptyPatch = errors.New("profile patch is empty")
	// ErrProfileStateBlocked is returned when UpdateProfile is invoked
	// before the account has been activated.
	ErrProfileStateBlocked = errors.New("profile update requires an activated account")
	// ErrBackendUnavailable wraps transport failures from the identity
	// backend.
	ErrBackendUnavailable = errors.New("identity backend unavailable")
)
