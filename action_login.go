package civiauth

import (
	"context"
	"strings"
)

// Login performs a password-based session exchange. On success the
// backend's signed-in notification drives the snapshot refresh; the action
// itself only reports the exchange outcome.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return failure(ErrEmailRequired)
	}
	if password == "" {
		return failure(ErrPasswordRequired)
	}

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	session, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLogin, false, "", email, err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLogin, true, sessionUserID(session), email, nil, nil)
	return success("signed in")
}
