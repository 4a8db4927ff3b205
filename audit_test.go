package civiauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func collectAudit(sink *ChannelSink, wait time.Duration) []AuditEvent {
	deadline := time.After(wait)
	var events []AuditEvent
	for {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		case <-deadline:
			return events
		}
	}
}

func TestAuditTrailForLogin(t *testing.T) {
	backend := newMockBackend()
	backend.issueSession = testSession("u1", true)
	backend.user = testUser("u1", StatusActive, RoleResident)
	backend.profile = testProfile("u1")

	sink := NewChannelSink(32)
	store, err := New().WithBackend(backend).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx := WithClientIP(WithUserAgent(context.Background(), "tester/1.0"), "203.0.113.7")
	if res := store.Login(ctx, "u1@example.gov", "pw"); !res.Success {
		t.Fatalf("Login: %v", res.Err)
	}
	store.Close() // flushes the dispatcher

	events := collectAudit(sink, 100*time.Millisecond)
	var login *AuditEvent
	sawStateChange := false
	for i := range events {
		switch events[i].EventType {
		case "login":
			login = &events[i]
		case "state_change":
			sawStateChange = true
		}
	}
	if login == nil {
		t.Fatalf("no login event in %+v", events)
	}
	if !login.Success || login.UserID != "u1" || login.Email != "u1@example.gov" {
		t.Errorf("login event = %+v", *login)
	}
	if login.IP != "203.0.113.7" || login.UserAgent != "tester/1.0" {
		t.Errorf("request context not captured: %+v", *login)
	}
	if !sawStateChange {
		t.Error("no state-change event emitted")
	}
}

func TestAuditFailureEventCarriesError(t *testing.T) {
	backend := newMockBackend()
	backend.signInErr = errors.New("invalid credentials")

	sink := NewChannelSink(32)
	store, err := New().WithBackend(backend).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if res := store.Login(context.Background(), "u1@example.gov", "pw"); res.Success {
		t.Fatal("Login succeeded")
	}
	store.Close()

	for _, event := range collectAudit(sink, 100*time.Millisecond) {
		if event.EventType == "login" {
			if event.Success || event.Error == "" {
				t.Errorf("failure event = %+v", event)
			}
			return
		}
	}
	t.Fatal("no login event emitted")
}

func TestNoAuditWithoutSink(t *testing.T) {
	store := initializedStore(t, newMockBackend())
	if store.AuditDropped() != 0 {
		t.Error("disabled audit reported drops")
	}
}
