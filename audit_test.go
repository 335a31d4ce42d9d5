package gridauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)
	defer d.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.Emit(ctx, AuditEvent{EventType: auditEventLoginSuccess, Success: true})
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-sink.Events():
			if ev.EventType != auditEventLoginSuccess {
				t.Fatalf("unexpected event %q", ev.EventType)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never drains: the dispatcher's buffer fills and, with
	// DropIfFull, later events are counted instead of blocking.
	block := make(chan struct{})
	sink := blockingSink{block: block}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()
	defer close(block) // unblock the sink before Close waits for the worker

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d.Emit(ctx, AuditEvent{EventType: auditEventLoginFailure})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a saturated buffer")
	}
}

type blockingSink struct {
	block chan struct{}
}

func (s blockingSink) Emit(ctx context.Context, _ AuditEvent) {
	select {
	case <-s.block:
	case <-ctx.Done():
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit config must not start a dispatcher")
	}
	// nil dispatcher methods are all no-ops.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherCloseFlushesBuffer(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	sink := &lockedWriterSink{buf: &buf, mu: &mu}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Emit(ctx, AuditEvent{EventType: auditEventRefreshSuccess, Success: true})
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	lines := strings.Count(buf.String(), "\n")
	if lines != 10 {
		t.Fatalf("expected 10 flushed events, got %d", lines)
	}
}

type lockedWriterSink struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (s *lockedWriterSink) Emit(_ context.Context, event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(data)
	s.buf.WriteByte('\n')
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventChallengeIssued,
		Wallet:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not JSON: %v", err)
	}
	if decoded.EventType != auditEventChallengeIssued {
		t.Fatalf("unexpected event type %q", decoded.EventType)
	}
}

func TestLoginEmitsAuditTrail(t *testing.T) {
	sink := NewChannelSink(64)
	h := newAuthHarnessWithSink(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
	}, sink)
	h.login(t)

	var seen []string
	deadline := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-sink.Events():
			seen = append(seen, ev.EventType)
			// Secrets never land in audit metadata in full. An issued nonce
			// is 43 characters; the event carries only a truncated prefix.
			if ev.EventType == auditEventChallengeIssued {
				if nonce := ev.Metadata["nonce"]; len(nonce) > 11 {
					t.Fatalf("audit event leaks full nonce: %q", nonce)
				}
			}
		case <-deadline:
			t.Fatalf("timed out; events so far: %v", seen)
		}
	}

	want := map[string]bool{
		auditEventChallengeIssued:    false,
		auditEventIdentityRegistered: false,
		auditEventLoginSuccess:       false,
	}
	for _, ev := range seen {
		if _, ok := want[ev]; ok {
			want[ev] = true
		}
	}
	for ev, ok := range want {
		if !ok {
			t.Fatalf("missing audit event %q (got %v)", ev, seen)
		}
	}
}
