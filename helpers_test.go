package civiauth

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockBackend is an in-memory Backend for store tests. Error fields force
// the corresponding call to fail; issueSession is what successful session
// exchanges install and announce.
type mockBackend struct {
	mu        sync.Mutex
	listeners map[int]func(SessionEvent)
	nextID    int

	session *Session
	user    *IdentityRecord
	profile *ProfileRecord

	issueSession *Session

	signUpErr        error
	signInErr        error
	verifyEmailErr   error
	otpRequestErr    error
	otpVerifyErr     error
	getSessionErr    error
	refreshErr       error
	signOutErr       error
	getUserErr       error
	createProfileErr error
	updateProfileErr error

	signUpCalls        int
	signOutCalls       int
	createProfileCalls int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		listeners: make(map[int]func(SessionEvent)),
	}
}

func (m *mockBackend) emit(event SessionEvent) {
	m.mu.Lock()
	targets := make([]func(SessionEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		targets = append(targets, fn)
	}
	m.mu.Unlock()
	for _, fn := range targets {
		fn(event)
	}
}

func (m *mockBackend) installSession(kind EventKind) (*Session, error) {
	m.mu.Lock()
	m.session = m.issueSession
	session := m.session
	m.mu.Unlock()
	m.emit(SessionEvent{Kind: kind, Session: session})
	return session, nil
}

func (m *mockBackend) SignUp(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.signUpCalls++
	m.mu.Unlock()
	return m.signUpErr
}

func (m *mockBackend) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.installSession(EventSignedIn)
}

func (m *mockBackend) SignInWithOTP(ctx context.Context, email string) error {
	return m.otpRequestErr
}

func (m *mockBackend) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	if m.otpVerifyErr != nil {
		return nil, m.otpVerifyErr
	}
	return m.installSession(EventSignedIn)
}

func (m *mockBackend) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	if m.verifyEmailErr != nil {
		return nil, m.verifyEmailErr
	}
	return m.installSession(EventSignedIn)
}

func (m *mockBackend) GetSession(ctx context.Context) (*Session, error) {
	if m.getSessionErr != nil {
		return nil, m.getSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *mockBackend) RefreshSession(ctx context.Context) (*Session, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	m.emit(SessionEvent{Kind: EventTokenRefreshed, Session: session})
	return session, nil
}

func (m *mockBackend) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	if m.signOutErr != nil {
		m.mu.Unlock()
		return m.signOutErr
	}
	had := m.session != nil
	m.session = nil
	m.mu.Unlock()
	if had {
		m.emit(SessionEvent{Kind: EventSignedOut})
	}
	return nil
}

func (m *mockBackend) OnSessionChange(listener func(SessionEvent)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *mockBackend) GetCurrentUser(ctx context.Context) (*IdentityRecord, *ProfileRecord, error) {
	if m.getUserErr != nil {
		return nil, nil, m.getUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, m.profile, nil
}

func (m *mockBackend) CreateUserProfile(ctx context.Context, userID, email string, input ProfileInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createProfileCalls++
	if m.createProfileErr != nil {
		return m.createProfileErr
	}
	now := time.Now()
	m.profile = &ProfileRecord{
		UserID:      userID,
		FullName:    input.FullName,
		Phone:       input.Phone,
		AddressLine: input.AddressLine,
		City:        input.City,
		PostalCode:  input.PostalCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.user != nil {
		m.user.Status = StatusPending
		m.user.RawStatus = "pending"
	}
	return nil
}

func (m *mockBackend) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*ProfileRecord, error) {
	if m.updateProfileErr != nil {
		return nil, m.updateProfileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil, ErrNotAuthenticated
	}
	if patch.FullName != nil {
		m.profile.FullName = *patch.FullName
	}
	if patch.Phone != nil {
		m.profile.Phone = *patch.Phone
	}
	if patch.AddressLine != nil {
		m.profile.AddressLine = *patch.AddressLine
	}
	if patch.City != nil {
		m.profile.City = *patch.City
	}
	if patch.PostalCode != nil {
		m.profile.PostalCode = *patch.PostalCode
	}
	m.profile.UpdatedAt = time.Now()
	updated := *m.profile
	return &updated, nil
}

func confirmedAt() *time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &t
}

func testSession(userID string, confirmed bool) *Session {
	s := &Session{
		Token:     "tok-" + userID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if confirmed {
		s.EmailConfirmedAt = confirmedAt()
	}
	return s
}

func testUser(id string, status AccountStatus, role Role) *IdentityRecord {
	return &IdentityRecord{
		ID:               id,
		Email:            id + "@example.gov",
		EmailConfirmedAt: confirmedAt(),
		Status:           status,
		RawStatus:        status.String(),
		Role:             role,
		CreatedAt:        time.Now(),
	}
}

func testProfile(userID string) *ProfileRecord {
	return &ProfileRecord{
		UserID:      userID,
		FullName:    "Test Resident",
		AddressLine: "1 Civic Square",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	store, err := New().WithBackend(backend).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func initializedStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	store := newTestStore(t, backend)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return store
}
