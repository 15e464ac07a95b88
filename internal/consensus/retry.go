package consensus

import (
	"context"
	"math"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

// ExecuteWithRetry runs Execute and repeats it on any error, up to
// MaxRetries additional attempts. The delay before retry n grows by the
// backoff multiplier, with no jitter, and is a plain sleep between fully
// independent attempts. The last error wins once attempts run out.
func (e *Engine) ExecuteWithRetry(ctx context.Context, prompt string, opts contract.QueryOptions, override *ConfigOverride) (*contract.ConsensusResult, error) {
	retry := e.cfg.Retry
	if override != nil && override.Retry != nil {
		retry = *override.Retry
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	multiplier := retry.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(retry.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
			if delay > 0 {
				time.Sleep(delay)
			}
		}
		result, err := e.Execute(ctx, prompt, opts, override)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
