package jobs

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"storyvote/internal/events"

	"go.uber.org/zap"
)

// Worker drains the outbox and hands events to the publisher.
type Worker struct {
	ID        string
	Repo      *Repo
	Publisher events.Publisher
	Interval  time.Duration
	Log       *zap.Logger
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes due jobs until none are left or ctx ends.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.Repo.Claim(ctx, w.ID)
		if err != nil {
			w.Log.Error("Outbox claim failed", zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeEventPublish:
		w.publish(ctx, job)
	default:
		_ = w.Repo.MarkFailed(ctx, job.ID, "unknown job type")
	}
}

func (w *Worker) publish(ctx context.Context, job *Job) {
	var ev events.Event
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		_ = w.Repo.MarkFailed(ctx, job.ID, "bad payload")
		return
	}

	if err := w.Publisher.Publish(ctx, ev.Type, job.Payload); err != nil {
		w.Log.Warn("Event publish failed",
			zap.Uint64("jobID", job.ID),
			zap.String("topic", ev.Type),
			zap.Int("attempts", job.Attempts+1),
			zap.Error(err),
		)
		w.retry(ctx, job, err.Error())
		return
	}

	if err := w.Repo.MarkDone(ctx, job.ID); err != nil {
		w.Log.Error("Outbox mark done failed", zap.Uint64("jobID", job.ID), zap.Error(err))
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(ctx, job.ID, errMsg)
		return
	}
	_ = w.Repo.RetryLater(ctx, job.ID, attempts, time.Now().Add(backoff(attempts)), errMsg)
}

// backoff doubles per attempt and caps at ten minutes.
func backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
