package consensus

import (
	"context"
	"log"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

// HealthSink persists provider health observations.
type HealthSink interface {
	InsertProviderHealth(ctx context.Context, provider, status string, latency time.Duration, lastError string) error
}

// Broadcaster pushes events to connected realtime clients.
type Broadcaster interface {
	Broadcast(payload any)
}

const (
	probePrompt    = "Respond with: OK"
	probeMaxTokens = 8
	probeTimeout   = 30 * time.Second
)

// HealthMonitor periodically sends a tiny probe through each enabled
// provider, then persists and broadcasts the refreshed health records.
// Sink and Notifier are optional.
type HealthMonitor struct {
	Registry *Registry
	Interval time.Duration
	Sink     HealthSink
	Notifier Broadcaster
}

func (m *HealthMonitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *HealthMonitor) runOnce(ctx context.Context) {
	statuses := map[string]contract.ProviderHealth{}
	for _, p := range m.Registry.GetAll() {
		if _, err := p.Query(ctx, probePrompt, contract.QueryOptions{MaxTokens: probeMaxTokens, Timeout: probeTimeout}); err != nil {
			log.Printf("health: probe failed for %s: %v", p.Name(), err)
		}
		health := p.Health()
		statuses[p.Name()] = health
		if health.Status == contract.StatusDown {
			log.Printf("health: provider %s is down after %d consecutive errors", p.Name(), health.ConsecutiveErrors)
		}
		if m.Sink != nil {
			if err := m.Sink.InsertProviderHealth(ctx, p.Name(), health.Status, health.Latency, health.LastError); err != nil {
				log.Printf("health: persist failed for %s: %v", p.Name(), err)
			}
		}
	}
	if m.Notifier != nil && len(statuses) > 0 {
		m.Notifier.Broadcast(map[string]any{
			"type":      "provider.health",
			"providers": statuses,
		})
	}
}
