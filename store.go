package civiauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	internalaudit "github.com/citizenhub/civiauth/internal/audit"
	"github.com/citizenhub/civiauth/permission"
	"go.uber.org/zap"
)

// Store is the session lifecycle manager. It owns the only mutable snapshot
// in the package: every mutation funnels through the single publish path,
// readers get deep copies, and completions that land after Close are
// discarded rather than published.
//
// Construct a Store with [New] and bootstrap it with [Store.Initialize].
type Store struct {
	config  Config
	backend Backend
	roles   *permission.RoleSet
	logger  *zap.Logger
	audit   *internalaudit.Dispatcher
	metrics *Metrics

	mu          sync.Mutex
	snap        Snapshot
	closed      bool
	initialized bool
	unsubscribe func()
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// Initialize bootstraps the snapshot: it registers the process-lifetime
// session-change listener, asks the backend for the current session, and
// either resolves the full triple or settles on StateUnauthenticated.
// Initialize is called once; repeat calls return ErrStoreClosed after Close
// and nil otherwise without re-running the bootstrap.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	unsubscribe := s.backend.OnSessionChange(s.handleSessionEvent)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrStoreClosed
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	session, err := s.backend.GetSession(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		s.publish(func(snap *Snapshot) {
			snap.IsLoading = false
			snap.LastError = wrapped
		})
		return wrapped
	}

	if session == nil {
		s.publish(func(snap *Snapshot) {
			snap.Session = nil
			snap.User = nil
			snap.Profile = nil
			snap.AccountState = StateUnauthenticated
			snap.IsLoading = false
			snap.LastError = nil
		})
		return nil
	}

	return s.fetchAndResolve(ctx, session)
}

// Close unregisters the session-change listener and stops the audit
// dispatcher. After Close no snapshot mutation is published; in-flight
// fetches resolve into the void.
func (s *Store) Close() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.subscribers = map[int]func(Snapshot){}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.audit.Close()
}

// Snapshot returns a deep copy of the current snapshot. The snapshot must
// not be treated as settled while IsLoading is true.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Subscribe registers a listener invoked with a snapshot copy after every
// publication, and returns its unsubscribe handle. Listeners registered
// after Close never fire.
func (s *Store) Subscribe(listener func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || listener == nil {
		return func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// MetricsSnapshot returns a point-in-time copy of the store's counters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped by a full buffer.
func (s *Store) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// handleSessionEvent is the single registered backend listener. Signed-in
// and token-refreshed events re-run the fetch-and-resolve sequence;
// signed-out clears the snapshot in place.
func (s *Store) handleSessionEvent(event SessionEvent) {
	switch event.Kind {
	case EventSignedOut:
		s.publish(func(snap *Snapshot) {
			snap.Session = nil
			snap.User = nil
			snap.Profile = nil
			snap.AccountState = StateUnauthenticated
			snap.IsLoading = false
			snap.LastError = nil
		})
	case EventSignedIn, EventTokenRefreshed:
		ctx := context.Background()
		cancel := func() {}
		if s.config.Fetch.EventFetchTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, s.config.Fetch.EventFetchTimeout)
		}
		defer cancel()
		_ = s.fetchAndResolve(ctx, event.Session)
	default:
		s.logger.Warn("ignoring unknown session event", zap.Uint8("kind", uint8(event.Kind)))
	}
}

// fetchAndResolve is the one routine behind initialization, event handling,
// explicit refresh, and the post-onboarding reload. It fetches the
// identity+profile pair, recomputes the account state, and publishes the
// consistent triple in a single step. On failure the previous snapshot
// stays untouched except for the error flag.
func (s *Store) fetchAndResolve(ctx context.Context, session *Session) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.discardStale(ctx, "fetch_and_resolve")
		return ErrStoreClosed
	}

	user, profile, err := s.backend.GetCurrentUser(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		if !s.publish(func(snap *Snapshot) {
			snap.IsLoading = false
			snap.LastError = wrapped
		}) {
			s.discardStale(ctx, "fetch_and_resolve")
			return ErrStoreClosed
		}
		return wrapped
	}

	state := Resolve(session, user, profile)
	if !s.publish(func(snap *Snapshot) {
		snap.Session = session.clone()
		snap.User = user.clone()
		snap.Profile = profile.clone()
		snap.AccountState = state
		snap.IsLoading = false
	}) {
		s.discardStale(ctx, "fetch_and_resolve")
		return ErrStoreClosed
	}

	return nil
}

// publish applies update to the snapshot under the store lock and fans the
// resulting copy out to subscribers. It reports false, leaving the snapshot
// untouched, when the store has been closed — the liveness guard for every
// asynchronous completion.
func (s *Store) publish(update func(*Snapshot)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	prevState := s.snap.AccountState
	update(&s.snap)
	newState := s.snap.AccountState
	snap := s.snap.clone()

	listeners := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.metrics.Inc(MetricSnapshotPublished)
	if newState != prevState {
		s.metrics.Inc(MetricStateTransition)
		s.logger.Debug("account state changed",
			zap.String("from", prevState.String()),
			zap.String("to", newState.String()),
		)
		s.emitAudit(context.Background(), auditEventStateChange, true, snapshotUserID(snap), "", nil, func() map[string]string {
			return map[string]string{
				"from": prevState.String(),
				"to":   newState.String(),
			}
		})
	}

	for _, fn := range listeners {
		fn(snap)
	}

	return true
}

func (s *Store) discardStale(ctx context.Context, origin string) {
	s.metrics.Inc(MetricStaleResultDiscarded)
	s.logger.Debug("discarded completion after close", zap.String("origin", origin))
	s.emitAudit(ctx, auditEventStaleDiscard, false, "", "", ErrStoreClosed, func() map[string]string {
		return map[string]string{"origin": origin}
	})
}

// beginAction marks the snapshot loading and clears the previous error.
// It reports false when the store is closed.
func (s *Store) beginAction() bool {
	return s.publish(func(snap *Snapshot) {
		snap.IsLoading = true
		snap.LastError = nil
	})
}

func (s *Store) failAction(err error) {
	_ = s.publish(func(snap *Snapshot) {
		snap.IsLoading = false
		snap.LastError = err
	})
}

func (s *Store) finishAction() {
	_ = s.publish(func(snap *Snapshot) {
		snap.IsLoading = false
	})
}

func (s *Store) stateString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.AccountState.String()
}

func (s *Store) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, email string,
	cause error,
	metaFn func() map[string]string,
) {
	if s.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		State:     s.stateString(),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	s.audit.Emit(ctx, event)
}

func snapshotUserID(snap Snapshot) string {
	if snap.User != nil {
		return snap.User.ID
	}
	if snap.Session != nil {
		return snap.Session.UserID
	}
	return ""
}
