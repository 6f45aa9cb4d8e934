package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storyvote/internal/events"

	"gorm.io/gorm"
)

// EnqueueEvent writes ev to the outbox using tx, so the event exists only if
// the surrounding transaction commits.
func EnqueueEvent(tx *gorm.DB, actorID uint64, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	j := Job{
		UserID:  actorID,
		Type:    TypeEventPublish,
		Topic:   ev.Type,
		Payload: payload,
		RunAt:   time.Now(),
		Status:  StatusPending,
	}
	if err := tx.Create(&j).Error; err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Type, err)
	}
	return nil
}

// Emit builds an event from data and enqueues it on tx.
func Emit(tx *gorm.DB, actorID uint64, typ string, data any) error {
	ev, err := events.New(typ, data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", typ, err)
	}
	return EnqueueEvent(tx, actorID, ev)
}

type Repo struct {
	DB *gorm.DB
}

// Claim one due job atomically using SKIP LOCKED. Stuck RUNNING jobs older than
// five minutes are returned to PENDING first.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`).Error; err != nil {
			return err
		}

		return tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc, id asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID).Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status='DONE', locked_by=null, locked_at=null, updated_at=now() where id=?`, id).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status='FAILED', last_error=?, updated_at=now() where id=?`, errMsg, id).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, attempts, runAt, errMsg, id).Error
}
