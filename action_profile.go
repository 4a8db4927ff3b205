package civiauth

import (
	"context"
	"strings"
)

// CreateProfile performs the one-time onboarding write that moves an
// account from StateProfileIncomplete to StatePendingApproval. The backend
// call is transactional: either the profile row and the pending status both
// land, or neither does, so a failure leaves the account state unchanged.
// On success the store forces a full fetch-and-resolve.
func (s *Store) CreateProfile(ctx context.Context, input ProfileInput) Result {
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(input.AddressLine) == "" {
		return failure(ErrProfileFieldsRequired)
	}

	snap := s.Snapshot()
	if snap.Session == nil {
		return failure(ErrNotAuthenticated)
	}
	session := snap.Session
	email := sessionEmail(snap)

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	if err := s.backend.CreateUserProfile(ctx, session.UserID, email, input); err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricProfileCreateFailure)
		s.emitAudit(ctx, auditEventProfileCreate, false, session.UserID, email, err, nil)
		return failure(err)
	}

	s.metrics.Inc(MetricProfileCreateSuccess)
	s.emitAudit(ctx, auditEventProfileCreate, true, session.UserID, email, nil, nil)

	if err := s.fetchAndResolve(ctx, session); err != nil {
		return Result{Success: true, Err: err, Message: "profile created; refresh failed"}
	}
	return success("profile created")
}

// UpdateProfile patches the profile of an account that has already been
// activated (StateActive or later). The updated record is merged into the
// snapshot without a full refetch.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) Result {
	if patch.FullName == nil && patch.Phone == nil && patch.AddressLine == nil &&
		patch.City == nil && patch.PostalCode == nil {
		return failure(ErrProfileEmptyPatch)
	}

	snap := s.Snapshot()
	if snap.Session == nil {
		return failure(ErrNotAuthenticated)
	}
	// State errors fail safe to a blocked outcome; the snapshot's own data
	// was never touched, so LastError stays as it was.
	if snap.AccountState < StateActive {
		return failure(ErrProfileStateBlocked)
	}
	userID := snap.Session.UserID

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	updated, err := s.backend.UpdateProfile(ctx, userID, patch)
	if err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricProfileUpdateFailure)
		s.emitAudit(ctx, auditEventProfileUpdate, false, userID, "", err, nil)
		return failure(err)
	}

	if !s.publish(func(sn *Snapshot) {
		sn.Profile = updated.clone()
		sn.AccountState = Resolve(sn.Session, sn.User, sn.Profile)
		sn.IsLoading = false
	}) {
		return failure(ErrStoreClosed)
	}

	s.metrics.Inc(MetricProfileUpdateSuccess)
	s.emitAudit(ctx, auditEventProfileUpdate, true, userID, "", nil, nil)
	return success("profile updated")
}

func sessionEmail(snap Snapshot) string {
	if snap.User != nil && snap.User.Email != "" {
		return snap.User.Email
	}
	return ""
}
