package civiauth

import (
	"context"
	"strings"
)

// SignUp creates a backend identity record and triggers the verification
// email. No session exists yet, so the snapshot is untouched beyond the
// loading flag.
func (s *Store) SignUp(ctx context.Context, email, password string) Result {
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

	if err := s.backend.SignUp(ctx, email, password); err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricSignUpFailure)
		s.emitAudit(ctx, auditEventSignUp, false, "", email, err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricSignUpSuccess)
	s.emitAudit(ctx, auditEventSignUp, true, "", email, nil, nil)
	return success("verification email sent")
}

// VerifyEmail exchanges an email-verification token for a confirmed
// session. The action itself does not fetch identity or profile records;
// the subsequent signed-in event (or an explicit refresh) performs the
// snapshot refresh.
func (s *Store) VerifyEmail(ctx context.Context, token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return failure(ErrTokenRequired)
	}

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	session, err := s.backend.VerifyEmail(ctx, token)
	if err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricEmailVerifyFailure)
		s.emitAudit(ctx, auditEventEmailVerify, false, "", "", err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricEmailVerifySuccess)
	s.emitAudit(ctx, auditEventEmailVerify, true, sessionUserID(session), "", nil, nil)
	return success("email verified")
}

func sessionUserID(session *Session) string {
	if session == nil {
		return ""
	}
	return session.UserID
}

func failure(err error) Result {
	return Result{Success: false, Err: err, Message: err.Error()}
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}
