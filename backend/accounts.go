package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citizenhub/civiauth"
)

// storedUser is the redis row for an identity record. Status stays empty
// until the onboarding profile is created; the resolver treats the account
// as profile-incomplete until then.
type storedUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"password_hash"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	Status           string     `json:"status,omitempty"`
	Role             string     `json:"role"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u *storedUser) identity() *civiauth.IdentityRecord {
	rec := &civiauth.IdentityRecord{
		ID:        u.ID,
		Email:     u.Email,
		Status:    civiauth.ParseAccountStatus(u.Status),
		RawStatus: u.Status,
		Role:      civiauth.ParseRole(u.Role),
		CreatedAt: u.CreatedAt,
	}
	if u.EmailConfirmedAt != nil {
		t := *u.EmailConfirmedAt
		rec.EmailConfirmedAt = &t
	}
	return rec
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an identity record keyed by email and mails a verification
// token. No session is issued; the caller stays signed out until the token
// is exchanged.
func (s *Service) SignUp(ctx context.Context, email, pass string) error {
	email = normalizeEmail(email)

	user := &storedUser{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      s.cfg.DefaultRole,
		CreatedAt: time.Now().UTC(),
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// The email index row is the uniqueness guard. SetNX loses the race
	// cleanly when two signups collide on one address.
	ok, err := s.redis.SetNX(ctx, s.keyEmail(email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		return ErrDuplicateEmail
	}
	if err := s.redis.Set(ctx, s.keyUser(user.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, s.keyVerify(token), user.ID, s.cfg.VerificationTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.mailer.SendVerification(email, token); err != nil {
		return err
	}

	s.logger.Info("account registered", zap.String("email", email), zap.String("user_id", user.ID))
	return nil
}

// VerifyEmail exchanges a verification token for a confirmed session. The
// token is single use; the row is deleted before the session is issued.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*civiauth.Session, error) {
	userID, err := s.redis.GetDel(ctx, s.keyVerify(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrVerificationInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	user, err := s.loadUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailConfirmedAt == nil {
		now := time.Now().UTC()
		user.EmailConfirmedAt = &now
		if err := s.saveUser(ctx, user); err != nil {
			return nil, err
		}
	}

	return s.createSession(ctx, user, civiauth.EventSignedIn)
}

// SignInWithPassword exchanges credentials for a session. Unknown emails and
// wrong passwords return the same sentinel.
func (s *Service) SignInWithPassword(ctx context.Context, email, pass string) (*civiauth.Session, error) {
	user, err := s.loadUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	return s.createSession(ctx, user, civiauth.EventSignedIn)
}

func (s *Service) loadUserByID(ctx context.Context, id string) (*storedUser, error) {
	raw, err := s.redis.Get(ctx, s.keyUser(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var user storedUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) loadUserByEmail(ctx context.Context, email string) (*storedUser, error) {
	id, err := s.redis.Get(ctx, s.keyEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return s.loadUserByID(ctx, id)
}

func (s *Service) saveUser(ctx context.Context, user *storedUser) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.keyUser(user.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
