package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyvote/internal/events"
	"storyvote/internal/jobs"
	"storyvote/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("broker down")
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func TestOutboxDeliversEvents(t *testing.T) {
	db := testutil.PostgresDB(t)

	require.NoError(t, jobs.Emit(db, 1, events.StoryCompleted, events.StoryCompletedData{StoryID: 3, AuthorID: 1}))
	require.NoError(t, jobs.Emit(db, 1, events.ChapterDeleted, events.ChapterDeletedData{StoryID: 3, ChapterID: 9}))

	pub := &recordingPublisher{}
	w := &jobs.Worker{ID: "test", Repo: &jobs.Repo{DB: db}, Publisher: pub, Interval: 20 * time.Millisecond, Log: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{events.StoryCompleted, events.ChapterDeleted}, pub.published())

	var pending int64
	require.NoError(t, db.Model(&jobs.Job{}).Where("status <> ?", jobs.StatusDone).Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestOutboxRetriesFailedPublish(t *testing.T) {
	db := testutil.PostgresDB(t)
	require.NoError(t, jobs.Emit(db, 2, events.CoinsCredited, events.CoinsCreditedData{UserID: 2, Coins: 5, PaymentID: "p"}))

	pub := &recordingPublisher{fails: 1}
	repo := &jobs.Repo{DB: db}
	w := &jobs.Worker{ID: "test", Repo: repo, Publisher: pub, Interval: 20 * time.Millisecond, Log: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var job jobs.Job
	require.Eventually(t, func() bool {
		return db.Where("topic = ?", events.CoinsCredited).Take(&job).Error == nil &&
			job.Attempts == 1 && job.Status == jobs.StatusPending
	}, 5*time.Second, 20*time.Millisecond)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "broker down", *job.LastError)
	assert.True(t, job.RunAt.After(time.Now()))

	// Pull the retry forward instead of waiting out the backoff.
	require.NoError(t, db.Model(&jobs.Job{}).Where("id = ?", job.ID).Update("run_at", time.Now().Add(-time.Second)).Error)
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 5*time.Second, 20*time.Millisecond)
}
