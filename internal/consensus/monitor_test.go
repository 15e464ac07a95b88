package consensus

import (
	"context"
	"testing"
	"time"
)

type recordingSink struct {
	providers []string
	statuses  []string
}

func (s *recordingSink) InsertProviderHealth(ctx context.Context, provider, status string, latency time.Duration, lastError string) error {
	s.providers = append(s.providers, provider)
	s.statuses = append(s.statuses, status)
	return nil
}

type recordingNotifier struct {
	payloads []any
}

func (n *recordingNotifier) Broadcast(payload any) {
	n.payloads = append(n.payloads, payload)
}

func TestHealthMonitorRunOnce(t *testing.T) {
	registry := NewRegistry()
	a := &fakeProvider{name: "a", text: "hi", enabled: true}
	b := &fakeProvider{name: "b", text: "hi", enabled: true}
	registry.Register(a)
	registry.Register(b)

	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	monitor := &HealthMonitor{Registry: registry, Sink: sink, Notifier: notifier}
	monitor.runOnce(context.Background())

	if a.queryCount() != 1 || b.queryCount() != 1 {
		t.Fatalf("expected one probe per provider, got %d and %d", a.queryCount(), b.queryCount())
	}
	if len(sink.providers) != 2 {
		t.Fatalf("expected 2 persisted observations, got %d", len(sink.providers))
	}
	if sink.providers[0] != "a" || sink.providers[1] != "b" {
		t.Fatalf("unexpected providers: %v", sink.providers)
	}
	if len(notifier.payloads) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(notifier.payloads))
	}
	payload, ok := notifier.payloads[0].(map[string]any)
	if !ok || payload["type"] != "provider.health" {
		t.Fatalf("unexpected payload: %+v", notifier.payloads[0])
	}
}

func TestHealthMonitorOptionalSinks(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeProvider{name: "a", text: "hi", enabled: true})

	monitor := &HealthMonitor{Registry: registry}
	monitor.runOnce(context.Background())
}

func TestHealthMonitorSkipsBroadcastWhenEmpty(t *testing.T) {
	notifier := &recordingNotifier{}
	monitor := &HealthMonitor{Registry: NewRegistry(), Notifier: notifier}
	monitor.runOnce(context.Background())
	if len(notifier.payloads) != 0 {
		t.Fatalf("no providers should mean no broadcast")
	}
}
