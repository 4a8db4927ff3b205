package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citizenhub/civiauth"
)

// otpChallenge is the redis row for a pending one-time-code login. Only the
// code's sha256 digest is stored.
type otpChallenge struct {
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// SignInWithOTP generates a one-time code for a registered email and mails
// it. A fresh request replaces any pending challenge for the same address.
func (s *Service) SignInWithOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.loadUserByEmail(ctx, email); err != nil {
		return err
	}

	code, err := randomCode(s.cfg.OTPDigits)
	if err != nil {
		return err
	}

	challenge := otpChallenge{
		CodeHash:  hashCode(code),
		ExpiresAt: time.Now().UTC().Add(s.cfg.OTPTTL),
	}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.keyOTP(email), payload, s.cfg.OTPTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := s.mailer.SendOTP(email, code); err != nil {
		return err
	}
	s.logger.Debug("one-time code issued", zap.String("email", email))
	return nil
}

// VerifyOTP exchanges a pending one-time code for a session. Wrong codes
// bump the attempt counter under a watch so concurrent guesses cannot reset
// it; hitting the limit destroys the challenge. Success confirms the email
// address as a side effect, matching magic-link semantics.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*civiauth.Session, error) {
	email = normalizeEmail(email)
	key := s.keyOTP(email)

	var matched bool
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrOTPInvalid
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		var challenge otpChallenge
		if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
			return err
		}
		if time.Now().After(challenge.ExpiresAt) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			return ErrOTPExpired
		}

		if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(challenge.CodeHash)) == 1 {
			matched = true
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}

		challenge.Attempts++
		if challenge.Attempts >= s.cfg.OTPMaxAttempts {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			return ErrOTPAttemptsExceeded
		}

		payload, err := json.Marshal(challenge)
		if err != nil {
			return err
		}
		ttl := time.Until(challenge.ExpiresAt)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		return ErrOTPInvalid
	}, key)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, ErrOTPInvalid
	}

	user, err := s.loadUserByEmail(ctx, email)
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

func randomCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
