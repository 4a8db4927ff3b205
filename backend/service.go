// Package backend is the redis-backed reference implementation of the
// civiauth Backend contract. It stores identity, profile, verification and
// one-time-code records in redis, signs session access tokens as HS256
// JWTs, and delivers session-change events synchronously on the caller's
// goroutine.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citizenhub/civiauth"
	"github.com/citizenhub/civiauth/password"
)

// Service implements civiauth.Backend against a redis instance. It holds at
// most one session at a time, mirroring a per-client credential cache.
type Service struct {
	cfg    Config
	redis  *redis.Client
	hasher *password.Hasher
	mailer Mailer
	logger *zap.Logger

	mu        sync.Mutex
	session   *civiauth.Session
	sessionID string
	listeners map[int]func(civiauth.SessionEvent)
	nextID    int
}

var _ civiauth.Backend = (*Service)(nil)

// New validates cfg and returns a ready Service. A nil mailer discards
// outbound messages; a nil logger is replaced with zap.NewNop().
func New(client *redis.Client, cfg Config, mailer Mailer, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	if mailer == nil {
		mailer = discardMailer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cfg:       cfg,
		redis:     client,
		hasher:    hasher,
		mailer:    mailer,
		logger:    logger,
		listeners: make(map[int]func(civiauth.SessionEvent)),
	}, nil
}

func (s *Service) keyUser(id string) string      { return s.cfg.RedisPrefix + ":user:id:" + id }
func (s *Service) keyEmail(email string) string  { return s.cfg.RedisPrefix + ":user:email:" + email }
func (s *Service) keyProfile(id string) string   { return s.cfg.RedisPrefix + ":profile:" + id }
func (s *Service) keyVerify(token string) string { return s.cfg.RedisPrefix + ":verify:" + token }
func (s *Service) keyOTP(email string) string    { return s.cfg.RedisPrefix + ":otp:" + email }
func (s *Service) keySession(sid string) string  { return s.cfg.RedisPrefix + ":sess:" + sid }

// OnSessionChange registers listener and returns its unsubscribe handle.
// Events are delivered synchronously on the goroutine that caused them.
func (s *Service) OnSessionChange(listener func(civiauth.SessionEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// emit snapshots the listener set under the lock and calls listeners after
// releasing it. Listeners may re-enter the service.
func (s *Service) emit(event civiauth.SessionEvent) {
	s.mu.Lock()
	targets := make([]func(civiauth.SessionEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(event)
	}
}

// createSession writes the server-side session row, signs an access token,
// installs the session as current, and emits the given event kind.
func (s *Service) createSession(ctx context.Context, user *storedUser, kind civiauth.EventKind) (*civiauth.Session, error) {
	now := time.Now().UTC()
	sid := uuid.NewString()

	if err := s.redis.Set(ctx, s.keySession(sid), user.ID, s.cfg.SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	token, err := issueToken(s.cfg.TokenSecret, user.ID, sid, s.cfg.SessionTTL, now)
	if err != nil {
		return nil, err
	}

	session := &civiauth.Session{
		Token:            token,
		UserID:           user.ID,
		ExpiresAt:        now.Add(s.cfg.SessionTTL),
		EmailConfirmedAt: user.EmailConfirmedAt,
	}

	s.mu.Lock()
	s.session = session
	s.sessionID = sid
	s.mu.Unlock()

	s.logger.Debug("session created",
		zap.String("user_id", user.ID),
		zap.String("session_id", sid),
		zap.String("event", kind.String()),
	)
	s.emit(civiauth.SessionEvent{Kind: kind, Session: cloneSession(session)})
	return cloneSession(session), nil
}

// GetSession returns the current session, or nil with a nil error when no
// session is held or the held one has expired.
func (s *Service) GetSession(ctx context.Context) (*civiauth.Session, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		if s.session == session {
			s.session = nil
			s.sessionID = ""
		}
		s.mu.Unlock()
		return nil, nil
	}
	return cloneSession(session), nil
}

// RefreshSession reissues the access token, extends the server-side row, and
// emits EventTokenRefreshed. The identity record is reloaded so a
// verification completed elsewhere is reflected in the session.
func (s *Service) RefreshSession(ctx context.Context) (*civiauth.Session, error) {
	s.mu.Lock()
	session := s.session
	sid := s.sessionID
	s.mu.Unlock()

	if session == nil {
		return nil, ErrNotAuthenticated
	}

	n, err := s.redis.Exists(ctx, s.keySession(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if n == 0 {
		s.mu.Lock()
		if s.sessionID == sid {
			s.session = nil
			s.sessionID = ""
		}
		s.mu.Unlock()
		s.emit(civiauth.SessionEvent{Kind: civiauth.EventSignedOut})
		return nil, ErrSessionRevoked
	}

	user, err := s.loadUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.redis.Expire(ctx, s.keySession(sid), s.cfg.SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	token, err := issueToken(s.cfg.TokenSecret, user.ID, sid, s.cfg.SessionTTL, now)
	if err != nil {
		return nil, err
	}

	refreshed := &civiauth.Session{
		Token:            token,
		UserID:           user.ID,
		ExpiresAt:        now.Add(s.cfg.SessionTTL),
		EmailConfirmedAt: user.EmailConfirmedAt,
	}

	s.mu.Lock()
	s.session = refreshed
	s.mu.Unlock()

	s.emit(civiauth.SessionEvent{Kind: civiauth.EventTokenRefreshed, Session: cloneSession(refreshed)})
	return cloneSession(refreshed), nil
}

// SignOut deletes the server-side session row, clears the current session,
// and emits EventSignedOut. Calling it without a session is a no-op.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	sid := s.sessionID
	s.session = nil
	s.sessionID = ""
	s.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := s.redis.Del(ctx, s.keySession(sid)).Err(); err != nil {
		s.logger.Warn("session row delete failed", zap.String("session_id", sid), zap.Error(err))
	}
	s.emit(civiauth.SessionEvent{Kind: civiauth.EventSignedOut})
	return nil
}

// Validate parses an access token and confirms its session row still exists.
// It is a server-side helper for services that receive the token over the
// wire; the Store never calls it.
func (s *Service) Validate(ctx context.Context, token string) (userID string, err error) {
	userID, sid, err := parseToken(s.cfg.TokenSecret, token)
	if err != nil {
		return "", ErrNotAuthenticated
	}
	got, err := s.redis.Get(ctx, s.keySession(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionRevoked
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if got != userID {
		return "", ErrNotAuthenticated
	}
	return userID, nil
}

func cloneSession(session *civiauth.Session) *civiauth.Session {
	if session == nil {
		return nil
	}
	c := *session
	if session.EmailConfirmedAt != nil {
		t := *session.EmailConfirmedAt
		c.EmailConfirmedAt = &t
	}
	return &c
}
