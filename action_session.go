package civiauth

import "context"

// Logout invalidates the session with the backend. The snapshot is cleared
// by the resulting signed-out notification, not by this action, so there is
// exactly one mutation path. Logging out while already signed out succeeds
// with no error.
func (s *Store) Logout(ctx context.Context) Result {
	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	userID := snapshotUserID(s.Snapshot())

	if err := s.backend.SignOut(ctx); err != nil {
		s.failAction(err)
		s.emitAudit(ctx, auditEventLogout, false, userID, "", err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, userID, "", nil, nil)
	return success("signed out")
}

// RefreshSession explicitly refreshes the backend session (for example
// after a tab regains focus) and re-runs fetch-and-resolve on success.
func (s *Store) RefreshSession(ctx context.Context) Result {
	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	session, err := s.backend.RefreshSession(ctx)
	if err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventSessionRefresh, false, "", "", err, nil)
		return failure(err)
	}

	if err := s.fetchAndResolve(ctx, session); err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventSessionRefresh, false, sessionUserID(session), "", err, nil)
		return failure(err)
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventSessionRefresh, true, sessionUserID(session), "", nil, nil)
	return success("session refreshed")
}

// ClearError explicitly clears LastError. Unrelated state changes never
// clear it implicitly, so a user revisiting a failed screen still sees why
// it failed until the next action or this call.
func (s *Store) ClearError() {
	_ = s.publish(func(snap *Snapshot) {
		snap.LastError = nil
	})
}
