package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyvote/internal/apperr"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ChapterView struct {
	Chapter
	State           State `json:"state"`
	IsLatest        bool  `json:"is_latest"`
	ClosesInSeconds int64 `json:"closes_in_seconds"`
	TotalVotes      int64 `json:"total_votes"`
}

// ViewerInfo is only present for an authenticated reader.
type ViewerInfo struct {
	UserID          uint64   `json:"user_id"`
	IsAuthor        bool     `json:"is_author"`
	VotedChapterIDs []uint64 `json:"voted_chapter_ids"`
}

type View struct {
	Story    Story         `json:"story"`
	Chapters []ChapterView `json:"chapters"`
	Viewer   *ViewerInfo   `json:"viewer,omitempty"`
}

// View returns the story with its chapters in order. viewerID 0 means an
// anonymous reader.
func (s *Service) View(ctx context.Context, storyID, viewerID uint64) (*View, error) {
	db := s.db.WithContext(ctx)

	var st Story
	err := db.Where("id = ?", storyID).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load story: %w", err)
	}

	var chapters []Chapter
	if err := db.Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("story_id = ?", storyID).
		Order("chapter_number asc").
		Find(&chapters).Error; err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}

	now := s.now()
	out := &View{Story: st, Chapters: make([]ChapterView, 0, len(chapters))}
	for i := range chapters {
		ch := chapters[i]
		isLatest := i == len(chapters)-1
		cv := ChapterView{
			Chapter:  ch,
			IsLatest: isLatest,
			State:    StateAt(&ch, isLatest, st.IsCompleted, now),
		}
		if cv.State == StateOpen {
			cv.ClosesInSeconds = int64(ch.ExpiresAt.Sub(now) / time.Second)
		}
		for _, o := range ch.Options {
			cv.TotalVotes += o.VoteCount
		}
		out.Chapters = append(out.Chapters, cv)
	}

	if viewerID == 0 {
		return out, nil
	}

	var voted pq.Int64Array
	row := db.Raw(`
select coalesce(array_agg(v.chapter_id order by v.chapter_id), '{}')
from votes v
join chapters c on c.id = v.chapter_id
where c.story_id = ? and v.user_id = ?`, storyID, viewerID).Row()
	if err := row.Scan(&voted); err != nil {
		return nil, fmt.Errorf("load voted chapters: %w", err)
	}

	ids := make([]uint64, 0, len(voted))
	for _, id := range voted {
		ids = append(ids, uint64(id))
	}
	out.Viewer = &ViewerInfo{
		UserID:          viewerID,
		IsAuthor:        st.AuthorID == viewerID,
		VotedChapterIDs: ids,
	}
	return out, nil
}
