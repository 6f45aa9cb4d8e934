// Package events defines the domain events the service emits and the
// publishers that deliver them to the broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routing keys.
const (
	ChapterPublished = "chapter.published"
	ChapterDeleted   = "chapter.deleted"
	StoryCompleted   = "story.completed"
	CoinsCredited    = "coins.credited"
)

// Event is the envelope written to the outbox and published as-is.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// New wraps data into an Event with a fresh id.
func New(typ string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Data:       b,
	}, nil
}

type ChapterPublishedData struct {
	StoryID       uint64    `json:"story_id"`
	ChapterID     uint64    `json:"chapter_id"`
	ChapterNumber int       `json:"chapter_number"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ChapterDeletedData struct {
	StoryID         uint64  `json:"story_id"`
	ChapterID       uint64  `json:"chapter_id"`
	LatestChapterID *uint64 `json:"latest_chapter_id"`
}

type StoryCompletedData struct {
	StoryID  uint64 `json:"story_id"`
	AuthorID uint64 `json:"author_id"`
}

type CoinsCreditedData struct {
	UserID    uint64 `json:"user_id"`
	Coins     int64  `json:"coins"`
	PaymentID string `json:"payment_id"`
}

// Publisher delivers an encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{log: logger.Named("EventLog")}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.log.Info("Event", zap.String("routingKey", routingKey), zap.ByteString("body", body))
	return nil
}
