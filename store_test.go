package civiauth

import (
	"context"
	"errors"
	"testing"
)

func TestInitializeSignedOut(t *testing.T) {
	store := initializedStore(t, newMockBackend())

	snap := store.Snapshot()
	if snap.AccountState != StateUnauthenticated {
		t.Errorf("state = %v, want %v", snap.AccountState, StateUnauthenticated)
	}
	if snap.IsLoading {
		t.Error("snapshot still loading after initialize")
	}
	if snap.LastError != nil {
		t.Errorf("unexpected error: %v", snap.LastError)
	}
}

func TestInitializeWithExistingSession(t *testing.T) {
	backend := newMockBackend()
	backend.session = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	store := initializedStore(t, backend)

	snap := store.Snapshot()
	if snap.AccountState != StateActive {
		t.Errorf("state = %v, want %v", snap.AccountState, StateActive)
	}
	if snap.Session == nil || snap.Session.UserID != "u1" {
		t.Error("session missing from snapshot")
	}
	if snap.User == nil || snap.Profile == nil {
		t.Error("records missing from snapshot")
	}
}

func TestInitializeBackendError(t *testing.T) {
	backend := newMockBackend()
	backend.getSessionErr = errors.New("network down")

	store := newTestStore(t, backend)
	err := store.Initialize(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("Initialize error = %v, want ErrBackendUnavailable", err)
	}

	snap := store.Snapshot()
	if snap.LastError == nil {
		t.Error("LastError not set after failed initialize")
	}
	if snap.IsLoading {
		t.Error("snapshot still loading after failed initialize")
	}
}

func TestInitializeIdempotent(t *testing.T) {
	backend := newMockBackend()
	store := initializedStore(t, backend)

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	// Only the first call registers a listener.
	if backend.nextID != 1 {
		t.Errorf("listener registrations = %d, want 1", backend.nextID)
	}
}

func TestInitializeAfterClose(t *testing.T) {
	store := newTestStore(t, newMockBackend())
	store.Close()
	if err := store.Initialize(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Initialize after Close = %v, want ErrStoreClosed", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	backend := newMockBackend()
	backend.session = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	store := initializedStore(t, backend)

	snap := store.Snapshot()
	snap.User.Status = StatusRejected
	snap.Profile.FullName = "Mallory"
	snap.Session.Token = "forged"

	again := store.Snapshot()
	if again.User.Status != StatusActive {
		t.Error("mutating a snapshot copy leaked into the store")
	}
	if again.Profile.FullName == "Mallory" || again.Session.Token == "forged" {
		t.Error("mutating a snapshot copy leaked into the store")
	}
}

func TestSubscribeReceivesPublications(t *testing.T) {
	backend := newMockBackend()
	store := initializedStore(t, backend)

	var states []AccountState
	unsubscribe := store.Subscribe(func(snap Snapshot) {
		states = append(states, snap.AccountState)
	})
	defer unsubscribe()

	backend.issueSession = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")
	if res := store.Login(context.Background(), "u1@example.gov", "pw"); !res.Success {
		t.Fatalf("Login failed: %v", res.Err)
	}

	if len(states) == 0 {
		t.Fatal("subscriber never invoked")
	}
	if final := states[len(states)-1]; final != StateActive {
		t.Errorf("final observed state = %v, want %v", final, StateActive)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	backend := newMockBackend()
	store := initializedStore(t, backend)

	calls := 0
	unsubscribe := store.Subscribe(func(Snapshot) { calls++ })
	unsubscribe()

	store.ClearError()
	if calls != 0 {
		t.Errorf("unsubscribed listener invoked %d times", calls)
	}
}

func TestSignedOutEventClearsSnapshot(t *testing.T) {
	backend := newMockBackend()
	backend.session = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	store := initializedStore(t, backend)

	backend.emit(SessionEvent{Kind: EventSignedOut})

	snap := store.Snapshot()
	if snap.AccountState != StateUnauthenticated {
		t.Errorf("state = %v, want %v", snap.AccountState, StateUnauthenticated)
	}
	if snap.Session != nil || snap.User != nil || snap.Profile != nil {
		t.Error("snapshot fields not cleared on signed-out event")
	}
	if snap.LastError != nil {
		t.Errorf("stale error survived sign-out: %v", snap.LastError)
	}
}

// A fetch that completes after Close must be discarded, not published.
func TestCloseDiscardsInFlightResults(t *testing.T) {
	backend := newMockBackend()
	backend.session = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	store := initializedStore(t, backend)
	before := store.Snapshot()

	store.Close()

	err := store.fetchAndResolve(context.Background(), testSession("u2", true))
	if !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("fetchAndResolve after Close = %v, want ErrStoreClosed", err)
	}

	after := store.Snapshot()
	if after.AccountState != before.AccountState {
		t.Errorf("state changed after Close: %v -> %v", before.AccountState, after.AccountState)
	}
	if after.Session == nil || after.Session.UserID != "u1" {
		t.Error("stale completion replaced the session after Close")
	}
	if store.MetricsSnapshot().Counters[MetricStaleResultDiscarded] == 0 {
		t.Error("discarded completion not counted")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := initializedStore(t, newMockBackend())
	store.Close()
	store.Close()
}

func TestEventsAfterCloseAreIgnored(t *testing.T) {
	backend := newMockBackend()
	store := initializedStore(t, backend)
	store.Close()

	// Close unregisters the listener, so nothing reaches the store.
	backend.issueSession = testSession("u1", true)
	backend.emit(SessionEvent{Kind: EventSignedIn, Session: backend.issueSession})

	snap := store.Snapshot()
	if snap.Session != nil {
		t.Error("event after Close mutated the snapshot")
	}
}

func TestFetchFailureKeepsPreviousRecords(t *testing.T) {
	backend := newMockBackend()
	backend.session = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	store := initializedStore(t, backend)

	backend.getUserErr = errors.New("timeout")
	res := store.RefreshSession(context.Background())
	if res.Success {
		t.Fatal("refresh reported success despite fetch failure")
	}

	snap := store.Snapshot()
	if snap.AccountState != StateActive {
		t.Errorf("state = %v, want previous %v", snap.AccountState, StateActive)
	}
	if !errors.Is(snap.LastError, ErrBackendUnavailable) {
		t.Errorf("LastError = %v, want ErrBackendUnavailable", snap.LastError)
	}
}

func TestClearError(t *testing.T) {
	backend := newMockBackend()
	backend.signInErr = errors.New("bad credentials")
	store := initializedStore(t, backend)

	if res := store.Login(context.Background(), "a@example.gov", "pw"); res.Success {
		t.Fatal("login unexpectedly succeeded")
	}
	if store.Snapshot().LastError == nil {
		t.Fatal("LastError not set")
	}

	store.ClearError()
	if store.Snapshot().LastError != nil {
		t.Error("LastError survived ClearError")
	}
}
