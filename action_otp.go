package civiauth

import (
	"context"
	"strings"
)

// LoginWithOTP is phase one of the two-phase OTP flow: it asks the backend
// to deliver a one-time code out of band. No session is issued. Which phase
// is pending is transient caller state; the store does not track it.
func (s *Store) LoginWithOTP(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return failure(ErrEmailRequired)
	}

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	if err := s.backend.SignInWithOTP(ctx, email); err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricOTPRequestFailure)
		s.emitAudit(ctx, auditEventOTPRequest, false, "", email, err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricOTPRequestSuccess)
	s.emitAudit(ctx, auditEventOTPRequest, true, "", email, nil, nil)
	return success("one-time code sent")
}

// VerifyOTP is phase two: it exchanges the delivered code for a session.
// A wrong code leaves the account unauthenticated with LastError set; a
// later attempt with the right code proceeds normally.
func (s *Store) VerifyOTP(ctx context.Context, email, code string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return failure(ErrEmailRequired)
	}
	if strings.TrimSpace(code) == "" {
		return failure(ErrCodeRequired)
	}

	if !s.beginAction() {
		return failure(ErrStoreClosed)
	}

	session, err := s.backend.VerifyOTP(ctx, email, code)
	if err != nil {
		s.failAction(err)
		s.metrics.Inc(MetricOTPVerifyFailure)
		s.emitAudit(ctx, auditEventOTPVerify, false, "", email, err, nil)
		return failure(err)
	}

	s.finishAction()
	s.metrics.Inc(MetricOTPVerifySuccess)
	s.emitAudit(ctx, auditEventOTPVerify, true, sessionUserID(session), email, nil, nil)
	return success("signed in")
}
