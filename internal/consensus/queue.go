package consensus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sealevel/backend/internal/consensus/contract"
)

const (
	jobQueueKey     = "consensus:jobs"
	jobResultPrefix = "consensus:result:"
	jobResultTTL    = time.Hour
)

// Job is one queued consensus request awaiting a worker.
type Job struct {
	ID        string                `json:"id"`
	Prompt    string                `json:"prompt"`
	Options   contract.QueryOptions `json:"options"`
	Override  *ConfigOverride       `json:"override,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// JobResult is the stored outcome of a finished job.
type JobResult struct {
	ID         string                    `json:"id"`
	Status     string                    `json:"status"`
	Result     *contract.ConsensusResult `json:"result,omitempty"`
	Error      string                    `json:"error,omitempty"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// Queue is the redis-backed job queue for asynchronous consensus rounds.
// Finished results are parked under a per-job key so callers can poll.
type Queue struct {
	client *redis.Client
}

func NewQueue(redisURL string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Queue{client: redis.NewClient(opt)}, nil
}

func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, jobQueueKey, payload).Err()
}

func (q *Queue) DequeueBatch(ctx context.Context, batchSize int) ([][]byte, error) {
	var items [][]byte
	for i := 0; i < batchSize; i++ {
		item, err := q.client.RPop(ctx, jobQueueKey).Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *Queue) StoreResult(ctx context.Context, result JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return q.client.Set(ctx, jobResultPrefix+result.ID, payload, jobResultTTL).Err()
}

// FetchResult returns the stored outcome for a job ID. A job that has not
// finished yet, or was never enqueued, reports found=false.
func (q *Queue) FetchResult(ctx context.Context, id string) (*JobResult, bool, error) {
	payload, err := q.client.Get(ctx, jobResultPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var result JobResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, jobQueueKey).Result()
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker drains the job queue and runs each job through the engine with the
// configured retry policy. Outcomes are parked in redis for pickup and
// announced on the hub. Hub is optional.
type Worker struct {
	Queue     *Queue
	Engine    *Engine
	Hub       Broadcaster
	BatchSize int
}

func (w *Worker) Start(ctx context.Context) {
	batch := w.BatchSize
	if batch <= 0 {
		batch = 10
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, err := w.Queue.DequeueBatch(ctx, batch)
		if err != nil {
			time.Sleep(2 * time.Second)
			continue
		}
		if len(items) == 0 {
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, raw := range items {
			var job Job
			if err := json.Unmarshal(raw, &job); err != nil {
				log.Printf("worker: dropping malformed job: %v", err)
				continue
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	result, err := w.Engine.ExecuteWithRetry(jobCtx, job.Prompt, job.Options, job.Override)
	cancel()

	outcome := JobResult{ID: job.ID, FinishedAt: time.Now().UTC()}
	if err != nil {
		outcome.Status = "failed"
		outcome.Error = err.Error()
	} else {
		outcome.Status = "completed"
		outcome.Result = result
	}

	if err := w.Queue.StoreResult(ctx, outcome); err != nil {
		log.Printf("worker: storing result for job %s failed: %v", job.ID, err)
	}
	if w.Hub != nil {
		event := map[string]any{
			"type":   "consensus.completed",
			"job_id": job.ID,
		}
		if outcome.Status == "failed" {
			event["type"] = "consensus.failed"
			event["error"] = outcome.Error
		}
		w.Hub.Broadcast(event)
	}
}
