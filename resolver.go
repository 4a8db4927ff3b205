package civiauth

// Resolve maps the snapshot triple onto exactly one [AccountState].
//
// The function is pure, total, and deterministic. Rules apply in order and
// the first match wins; the ordering is part of the contract because
// several conditions can hold at once (a signed-out user trivially has no
// profile, an unverified session may already have an identity row).
//
//  1. No session → StateUnauthenticated.
//  2. Session email unconfirmed → StateEmailUnverified.
//  3. No identity record → StateProfileIncomplete.
//  4. No profile record → StateProfileIncomplete.
//  5. Dispatch on the identity status; anything unrecognized resolves to
//     StatePendingApproval so that corrupt data never grants access.
func Resolve(session *Session, user *IdentityRecord, profile *ProfileRecord) AccountState {
	if session == nil {
		return StateUnauthenticated
	}
	if session.EmailConfirmedAt == nil {
		return StateEmailUnverified
	}
	if user == nil {
		return StateProfileIncomplete
	}
	if profile == nil {
		return StateProfileIncomplete
	}

	switch user.Status {
	case StatusActive:
		return StateActive
	case StatusRejected:
		return StateRejected
	case StatusSuspended:
		return StateSuspended
	case StatusPending:
		return StatePendingApproval
	default:
		// Fail safe: an unknown status must never resolve to StateActive.
		return StatePendingApproval
	}
}
