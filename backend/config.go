package backend

import (
	"errors"
	"time"

	"github.com/citizenhub/civiauth/password"
)

// Config holds the reference backend's tunables.
type Config struct {
	// RedisPrefix namespaces every key written by the service.
	RedisPrefix string
	// TokenSecret signs HS256 session access tokens.
	TokenSecret []byte
	// SessionTTL bounds both the server-side session row and the access
	// token lifetime.
	SessionTTL time.Duration
	// VerificationTTL bounds email-verification tokens.
	VerificationTTL time.Duration
	// OTPTTL bounds one-time login codes.
	OTPTTL time.Duration
	// OTPDigits is the one-time code length.
	OTPDigits int
	// OTPMaxAttempts destroys the challenge after this many wrong codes.
	OTPMaxAttempts int
	// DefaultRole is assigned to identity records created by SignUp.
	DefaultRole string
	// Password configures the argon2id hasher.
	Password password.Config
}

// DefaultConfig returns development-grade defaults. TokenSecret must still
// be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		RedisPrefix:     "civ",
		SessionTTL:      30 * time.Minute,
		VerificationTTL: 24 * time.Hour,
		OTPTTL:          5 * time.Minute,
		OTPDigits:       6,
		OTPMaxAttempts:  5,
		DefaultRole:     "resident",
		Password:        password.DefaultConfig(),
	}
}

func (c Config) validate() error {
	if c.RedisPrefix == "" {
		return errors.New("redis prefix required")
	}
	if len(c.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 || c.VerificationTTL <= 0 || c.OTPTTL <= 0 {
		return errors.New("ttls must be positive")
	}
	if c.OTPDigits < 4 || c.OTPDigits > 10 {
		return errors.New("otp digits must be between 4 and 10")
	}
	if c.OTPMaxAttempts <= 0 {
		return errors.New("otp max attempts must be positive")
	}
	if c.DefaultRole == "" {
		return errors.New("default role required")
	}
	return nil
}
