package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/citizenhub/civiauth"
)

func requestCode(t *testing.T, svc *Service, mailer *ChannelMailer, email string) string {
	t.Helper()
	if err := svc.SignInWithOTP(context.Background(), email); err != nil {
		t.Fatalf("SignInWithOTP: %v", err)
	}
	delivery := <-mailer.Deliveries()
	if delivery.Code == "" {
		t.Fatal("delivery carries no code")
	}
	return delivery.Code
}

func registeredUser(t *testing.T, svc *Service, email string) {
	t.Helper()
	if err := svc.SignUp(context.Background(), email, "password-one"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
}

func TestOTPFlow(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	registeredUser(t, svc, "a@example.gov")
	<-mailer.Deliveries() // verification email

	code := requestCode(t, svc, mailer, "a@example.gov")
	if len(code) != svc.cfg.OTPDigits {
		t.Errorf("code length = %d, want %d", len(code), svc.cfg.OTPDigits)
	}

	session, err := svc.VerifyOTP(ctx, "a@example.gov", code)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	// A completed code login confirms the address.
	if session.EmailConfirmedAt == nil {
		t.Error("session not confirmed after code login")
	}

	// The challenge is consumed.
	if _, err := svc.VerifyOTP(ctx, "a@example.gov", code); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("code reuse err = %v, want ErrOTPInvalid", err)
	}
}

func TestOTPRequiresRegisteredEmail(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.SignInWithOTP(context.Background(), "nobody@example.gov"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestOTPWrongCodeThenRight(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	registeredUser(t, svc, "a@example.gov")
	<-mailer.Deliveries()

	code := requestCode(t, svc, mailer, "a@example.gov")

	if _, err := svc.VerifyOTP(ctx, "a@example.gov", "0000000000"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("wrong code err = %v, want ErrOTPInvalid", err)
	}
	if _, err := svc.VerifyOTP(ctx, "a@example.gov", code); err != nil {
		t.Fatalf("right code after wrong: %v", err)
	}
}

func TestOTPAttemptsExceeded(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	registeredUser(t, svc, "a@example.gov")
	<-mailer.Deliveries()

	code := requestCode(t, svc, mailer, "a@example.gov")

	var last error
	for i := 0; i < svc.cfg.OTPMaxAttempts; i++ {
		_, last = svc.VerifyOTP(ctx, "a@example.gov", "0000000000")
	}
	if !errors.Is(last, ErrOTPAttemptsExceeded) {
		t.Fatalf("final attempt err = %v, want ErrOTPAttemptsExceeded", last)
	}

	// The destroyed challenge rejects even the correct code.
	if _, err := svc.VerifyOTP(ctx, "a@example.gov", code); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("post-destruction err = %v, want ErrOTPInvalid", err)
	}
}

func TestOTPNewRequestReplacesChallenge(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	registeredUser(t, svc, "a@example.gov")
	<-mailer.Deliveries()

	first := requestCode(t, svc, mailer, "a@example.gov")
	second := requestCode(t, svc, mailer, "a@example.gov")

	if first != second {
		if _, err := svc.VerifyOTP(ctx, "a@example.gov", first); !errors.Is(err, ErrOTPInvalid) {
			t.Errorf("stale code err = %v, want ErrOTPInvalid", err)
		}
	}
	if _, err := svc.VerifyOTP(ctx, "a@example.gov", second); err != nil {
		t.Fatalf("current code rejected: %v", err)
	}
}

func TestOTPIssuesSignedInEvent(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	registeredUser(t, svc, "a@example.gov")
	<-mailer.Deliveries()

	var kinds []civiauth.EventKind
	unsubscribe := svc.OnSessionChange(func(e civiauth.SessionEvent) {
		kinds = append(kinds, e.Kind)
	})
	defer unsubscribe()

	code := requestCode(t, svc, mailer, "a@example.gov")
	if len(kinds) != 0 {
		t.Fatalf("code request emitted events: %v", kinds)
	}
	if _, err := svc.VerifyOTP(ctx, "a@example.gov", code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != civiauth.EventSignedIn {
		t.Errorf("events = %v, want one signed-in", kinds)
	}
}
