package story

import "time"

type Story struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	AuthorID    uint64    `gorm:"index;not null" json:"author_id"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	Description string    `gorm:"type:text;not null;default:''" json:"description"`
	AgeRating   string    `gorm:"type:text;not null;default:'0+'" json:"age_rating"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

// Chapter is one published installment. ClosedAt is set once the chapter is
// superseded or its story completes and is never cleared.
type Chapter struct {
	ID            uint64     `gorm:"primaryKey" json:"id"`
	StoryID       uint64     `gorm:"not null;uniqueIndex:uq_chapters_story_number,priority:1" json:"story_id"`
	ChapterNumber int        `gorm:"not null;uniqueIndex:uq_chapters_story_number,priority:2" json:"chapter_number"`
	Title         string     `gorm:"type:text;not null" json:"title"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	QuestionText  string     `gorm:"type:text;not null;default:''" json:"question_text"`
	ExpiresAt     time.Time  `gorm:"type:timestamptz;not null" json:"expires_at"`
	ClosedAt      *time.Time `gorm:"type:timestamptz" json:"closed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`

	Options []Option `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE" json:"options"`
}

type Option struct {
	ID        uint64 `gorm:"primaryKey" json:"id"`
	ChapterID uint64 `gorm:"index;not null" json:"chapter_id"`
	Position  int    `gorm:"not null" json:"position"`
	Text      string `gorm:"type:text;not null" json:"text"`
	VoteCount int64  `gorm:"not null;default:0" json:"vote_count"`
}

// State of a chapter's voting window.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// StateAt derives the chapter state. A chapter is open only while it is the
// latest chapter of an incomplete story, has not been closed and now is before
// its deadline.
func StateAt(ch *Chapter, isLatest, storyCompleted bool, now time.Time) State {
	if ch.ClosedAt != nil || storyCompleted || !isLatest {
		return StateClosed
	}
	if !now.Before(ch.ExpiresAt) {
		return StateClosed
	}
	return StateOpen
}
