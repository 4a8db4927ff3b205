package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citizenhub/civiauth"
)

type storedProfile struct {
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone,omitempty"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *storedProfile) record() *civiauth.ProfileRecord {
	return &civiauth.ProfileRecord{
		UserID:      p.UserID,
		FullName:    p.FullName,
		Phone:       p.Phone,
		AddressLine: p.AddressLine,
		City:        p.City,
		PostalCode:  p.PostalCode,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// GetCurrentUser fetches the identity and profile rows for the current
// session. Rows that do not exist yet come back nil with a nil error so the
// caller can tell onboarding gaps from storage failures.
func (s *Service) GetCurrentUser(ctx context.Context) (*civiauth.IdentityRecord, *civiauth.ProfileRecord, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return nil, nil, ErrNotAuthenticated
	}

	user, err := s.loadUserByID(ctx, session.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	profile, err := s.loadProfile(ctx, session.UserID)
	if errors.Is(err, ErrProfileNotFound) {
		return user.identity(), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return user.identity(), profile.record(), nil
}

// CreateUserProfile writes the profile row and flips the identity status to
// pending in one transaction. Either both rows land or neither does.
func (s *Service) CreateUserProfile(ctx context.Context, userID, email string, input civiauth.ProfileInput) error {
	userKey := s.keyUser(userID)
	profileKey := s.keyProfile(userID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, profileKey).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if n > 0 {
			return ErrProfileExists
		}

		raw, err := tx.Get(ctx, userKey).Result()
		if errors.Is(err, redis.Nil) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		var user storedUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return err
		}
		user.Status = civiauth.StatusPending.String()

		now := time.Now().UTC()
		profile := storedProfile{
			UserID:      userID,
			FullName:    input.FullName,
			Phone:       input.Phone,
			AddressLine: input.AddressLine,
			City:        input.City,
			PostalCode:  input.PostalCode,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		userPayload, err := json.Marshal(&user)
		if err != nil {
			return err
		}
		profilePayload, err := json.Marshal(&profile)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey, profilePayload, 0)
			pipe.Set(ctx, userKey, userPayload, 0)
			return nil
		})
		return err
	}, userKey, profileKey)
	if err != nil {
		return err
	}

	s.logger.Info("profile created", zap.String("user_id", userID), zap.String("email", email))
	return nil
}

// UpdateProfile applies the non-nil patch fields and returns the updated
// row.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch civiauth.ProfilePatch) (*civiauth.ProfileRecord, error) {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.FullName != nil {
		profile.FullName = *patch.FullName
	}
	if patch.Phone != nil {
		profile.Phone = *patch.Phone
	}
	if patch.AddressLine != nil {
		profile.AddressLine = *patch.AddressLine
	}
	if patch.City != nil {
		profile.City = *patch.City
	}
	if patch.PostalCode != nil {
		profile.PostalCode = *patch.PostalCode
	}
	profile.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, s.keyProfile(userID), payload, 0).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return profile.record(), nil
}

// ApproveAccount marks an account active. Administrative status changes go
// through a side channel rather than the session API; the affected client
// observes them on its next fetch or refresh.
func (s *Service) ApproveAccount(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userID, civiauth.StatusActive)
}

// RejectAccount marks an application rejected.
func (s *Service) RejectAccount(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userID, civiauth.StatusRejected)
}

// SuspendAccount marks an approved account suspended.
func (s *Service) SuspendAccount(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userID, civiauth.StatusSuspended)
}

func (s *Service) setStatus(ctx context.Context, userID string, status civiauth.AccountStatus) error {
	user, err := s.loadUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Status = status.String()
	if err := s.saveUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info("account status changed",
		zap.String("user_id", userID),
		zap.String("status", status.String()),
	)
	return nil
}

func (s *Service) loadProfile(ctx context.Context, userID string) (*storedProfile, error) {
	raw, err := s.redis.Get(ctx, s.keyProfile(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var profile storedProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
