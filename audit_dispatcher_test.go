package tenantauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess})

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventLoginSuccess {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when audit disabled")
	}
	// All methods tolerate the nil dispatcher.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

// blockingSink never returns from Emit until released, to force the
// dispatcher buffer full.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the
	// rest must drop.
	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "event"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with full buffer")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "event"})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 5 {
				t.Fatalf("expected 5 delivered after Close, got %d", delivered)
			}
			return
		}
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(32)
	env := newTestEngineWithSink(t, sink)
	env.register(t, "alice@example.com", testPassword, "Acme")

	if _, err := env.engine.Login(context.Background(), "alice@example.com", "wrong-password-1X", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType != auditEventLoginFailure {
				continue
			}
			if event.Success {
				t.Fatal("failure event marked successful")
			}
			if event.Error == "" {
				t.Fatal("expected error detail on failure event")
			}
			return
		case <-deadline:
			t.Fatal("login failure event never arrived")
		}
	}
}
