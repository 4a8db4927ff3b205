package civiauth

import (
	"context"
	"time"
)

// AccountState is the derived lifecycle state of the signed-in (or absent)
// account. Exactly one state holds at any instant; it is recomputed from the
// snapshot triple by [Resolve] and never patched incrementally.
type AccountState uint8

const (
	// StateLoading holds from construction until Initialize publishes the
	// first resolved snapshot.
	StateLoading AccountState = iota
	// StateUnauthenticated means no session is present.
	StateUnauthenticated
	// StateEmailUnverified means a session exists whose email address has
	// not been confirmed yet.
	StateEmailUnverified
	// StateProfileIncomplete means the session is confirmed but the
	// identity record or profile record has not been created yet.
	StateProfileIncomplete
	// StatePendingApproval means onboarding is complete and the account
	// awaits administrator approval.
	StatePendingApproval
	// StateActive is the only state in which capability checks can grant
	// access.
	StateActive
	// StateRejected means an administrator declined the application.
	StateRejected
	// StateSuspended means an administrator suspended an approved account.
	StateSuspended
)

func (s AccountState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateEmailUnverified:
		return "email_unverified"
	case StateProfileIncomplete:
		return "profile_incomplete"
	case StatePendingApproval:
		return "pending_approval"
	case StateActive:
		return "active"
	case StateRejected:
		return "rejected"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// AccountStatus is the backend-side status field of an identity record.
// StatusUnknown preserves unrecognized wire values; the resolver treats it
// like StatusPending so corrupt data never grants access.
type AccountStatus uint8

const (
	// StatusPending awaits administrator approval.
	StatusPending AccountStatus = iota
	// StatusActive is an approved account.
	StatusActive
	// StatusRejected is a declined application.
	StatusRejected
	// StatusSuspended is a revoked account.
	StatusSuspended
	// StatusUnknown is any unrecognized wire value.
	StatusUnknown
)

// ParseAccountStatus maps a backend status string onto the closed
// [AccountStatus] enumeration. Unrecognized values map to StatusUnknown.
func ParseAccountStatus(raw string) AccountStatus {
	switch raw {
	case "pending":
		return StatusPending
	case "active":
		return StatusActive
	case "rejected":
		return StatusRejected
	case "suspended":
		return StatusSuspended
	default:
		return StatusUnknown
	}
}

func (s AccountStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusRejected:
		return "rejected"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Role is the closed set of account roles.
type Role uint8

const (
	// RoleResident is the default end-user role.
	RoleResident Role = iota
	// RoleAdmin is granted the union of the admin and resident
	// permission sets.
	RoleAdmin
	// RoleUnknown is any unrecognized wire value; it is never granted
	// permissions.
	RoleUnknown
)

// ParseRole maps a backend role string onto the closed [Role] enumeration.
func ParseRole(raw string) Role {
	switch raw {
	case "resident":
		return RoleResident
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleResident:
		return "resident"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// EventKind identifies a backend session-change notification.
type EventKind uint8

const (
	// EventSignedIn is emitted after any successful session exchange.
	EventSignedIn EventKind = iota
	// EventSignedOut is emitted after the session is invalidated.
	EventSignedOut
	// EventTokenRefreshed is emitted after a token refresh for an
	// existing session.
	EventTokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// SessionEvent is pushed by the backend to the registered session-change
// listener. Session is nil for EventSignedOut.
type SessionEvent struct {
	Kind    EventKind
	Session *Session
}

// Session is backend-issued proof of authentication. Sessions are never
// constructed locally; they are invalidated by logout, expiry, or refresh
// failure.
type Session struct {
	Token            string
	UserID           string
	ExpiresAt        time.Time
	EmailConfirmedAt *time.Time
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EmailConfirmedAt != nil {
		t := *s.EmailConfirmedAt
		c.EmailConfirmedAt = &t
	}
	return &c
}

// IdentityRecord is the backend account row. RawStatus preserves the wire
// value so diagnostics can distinguish corrupt data from a genuinely
// pending account even though both resolve to StatePendingApproval.
type IdentityRecord struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	Status           AccountStatus
	RawStatus        string
	Role             Role
	CreatedAt        time.Time
}

func (u *IdentityRecord) clone() *IdentityRecord {
	if u == nil {
		return nil
	}
	c := *u
	if u.EmailConfirmedAt != nil {
		t := *u.EmailConfirmedAt
		c.EmailConfirmedAt = &t
	}
	return &c
}

// ProfileRecord carries the resident-entered descriptive data created
// during onboarding. Keyed 1:1 to the identity record; created once,
// updated many times, never deleted by this core.
type ProfileRecord struct {
	UserID      string
	FullName    string
	Phone       string
	AddressLine string
	City        string
	PostalCode  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *ProfileRecord) clone() *ProfileRecord {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ProfileInput is the seed data for the one-time profile creation step.
type ProfileInput struct {
	FullName    string
	Phone       string
	AddressLine string
	City        string
	PostalCode  string
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	FullName    *string
	Phone       *string
	AddressLine *string
	City        *string
	PostalCode  *string
}

// Snapshot is the read surface exposed to the rest of the application.
// Values returned by [Store.Snapshot] are deep copies; mutating them has no
// effect on the store.
type Snapshot struct {
	Session      *Session
	User         *IdentityRecord
	Profile      *ProfileRecord
	AccountState AccountState
	IsLoading    bool
	LastError    error
}

func (s Snapshot) clone() Snapshot {
	s.Session = s.Session.clone()
	s.User = s.User.clone()
	s.Profile = s.Profile.clone()
	return s
}

// Result is the uniform outcome of every store action. Err is nil when
// Success is true; Message is a human-readable summary safe to surface.
type Result struct {
	Success bool
	Err     error
	Message string
}

// Backend is the identity backend contract consumed by the [Store].
// Implementations perform credential checks, session issuance, and
// identity/profile storage; the redis-backed reference implementation
// lives in the backend subpackage.
type Backend interface {
	// SignUp creates an identity record and sends a verification email.
	// No session is issued.
	SignUp(ctx context.Context, email, password string) error

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignInWithOTP requests a one-time code be delivered out of band.
	// No session is issued by this phase.
	SignInWithOTP(ctx context.Context, email string) error

	// VerifyOTP exchanges a previously requested one-time code for a
	// session.
	VerifyOTP(ctx context.Context, email, code string) (*Session, error)

	// VerifyEmail exchanges an email-verification token for a confirmed
	// session.
	VerifyEmail(ctx context.Context, token string) (*Session, error)

	// GetSession returns the current session, or nil with a nil error
	// when signed out.
	GetSession(ctx context.Context) (*Session, error)

	// RefreshSession refreshes and returns the current session.
	RefreshSession(ctx context.Context) (*Session, error)

	// SignOut invalidates the current session and emits EventSignedOut.
	SignOut(ctx context.Context) error

	// OnSessionChange registers a session-change listener and returns its
	// unsubscribe handle.
	OnSessionChange(listener func(SessionEvent)) (unsubscribe func())

	// GetCurrentUser fetches the identity+profile pair for the active
	// session. Records that do not exist yet are returned as nil with a
	// nil error so the resolver can distinguish "not yet created" from
	// "fetch failed".
	GetCurrentUser(ctx context.Context) (*IdentityRecord, *ProfileRecord, error)

	// CreateUserProfile creates the identity-linked profile and flips the
	// account status from absent to pending in one transactional write.
	// A partial write is a contract violation.
	CreateUserProfile(ctx context.Context, userID, email string, input ProfileInput) error

	// UpdateProfile patches the profile record and returns the updated
	// row.
	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*ProfileRecord, error)
}
