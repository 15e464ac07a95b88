package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

// downAfter is the number of consecutive failed calls after which a provider
// reports itself down instead of degraded.
const downAfter = 3

type Retrier struct {
	Attempts int
	Delay    time.Duration
}

func (r Retrier) Do(ctx context.Context, fn func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := r.Delay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("retry failed")
	}
	return lastErr
}

// healthRecord is the adapter-owned health state. Every Query outcome lands
// here; everyone else only reads snapshots.
type healthRecord struct {
	mu        sync.Mutex
	status    string
	latency   time.Duration
	errCount  int
	lastError string
	checkedAt time.Time
}

func newHealthRecord() *healthRecord {
	return &healthRecord{status: contract.StatusHealthy}
}

func (h *healthRecord) success(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = contract.StatusHealthy
	h.latency = latency
	h.errCount = 0
	h.lastError = ""
	h.checkedAt = time.Now().UTC()
}

func (h *healthRecord) failure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errCount++
	h.status = contract.StatusDegraded
	if h.errCount >= downAfter {
		h.status = contract.StatusDown
	}
	if err != nil {
		h.lastError = err.Error()
	}
	h.checkedAt = time.Now().UTC()
}

func (h *healthRecord) snapshot() contract.ProviderHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return contract.ProviderHealth{
		Status:            h.status,
		Latency:           h.latency,
		ConsecutiveErrors: h.errCount,
		LastError:         h.lastError,
		CheckedAt:         h.checkedAt,
	}
}

// merge fills unset query options from the provider's configured defaults.
func merge(cfg contract.ProviderConfig, opts contract.QueryOptions) contract.QueryOptions {
	if opts.Temperature <= 0 {
		opts.Temperature = cfg.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	return opts
}
