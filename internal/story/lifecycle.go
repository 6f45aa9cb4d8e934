package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/db/pgerr"
	"storyvote/internal/events"
	"storyvote/internal/jobs"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minOptions = 3

type PublishInput struct {
	StoryID  uint64
	AuthorID uint64
	// Number must be the story's current highest chapter number plus one.
	Number        int
	Title         string
	Content       string
	Question      string
	Options       []string
	DurationHours int
}

func (s *Service) validatePublish(in *PublishInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Question = strings.TrimSpace(in.Question)

	if in.Number < 1 {
		return fmt.Errorf("%w: chapter number must be positive", apperr.ErrInvalidInput)
	}
	if in.Title == "" || in.Content == "" {
		return fmt.Errorf("%w: title and content are required", apperr.ErrInvalidInput)
	}

	opts := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	if len(opts) < minOptions {
		return fmt.Errorf("%w: at least %d options are required", apperr.ErrInvalidInput, minOptions)
	}
	in.Options = opts

	if in.DurationHours == 0 {
		in.DurationHours = s.voting.DefaultHours
	}
	if in.DurationHours < 1 || in.DurationHours > s.voting.MaxHours {
		return fmt.Errorf("%w: duration must be between 1 and %d hours", apperr.ErrInvalidInput, s.voting.MaxHours)
	}
	return nil
}

// PublishChapter creates the next chapter with its options and closes every
// earlier chapter of the story. The story row is locked for the duration, and
// the (story_id, chapter_number) unique index catches anything that slips past.
func (s *Service) PublishChapter(ctx context.Context, in PublishInput) (*Chapter, error) {
	if in.AuthorID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	if err := s.validatePublish(&in); err != nil {
		return nil, err
	}

	var ch Chapter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := lockStory(tx, in.StoryID, "UPDATE")
		if err != nil {
			return err
		}
		if st.AuthorID != in.AuthorID {
			return apperr.ErrUnauthorized
		}
		if st.IsCompleted {
			return apperr.ErrStoryCompleted
		}

		latest, err := latestNumber(tx, st.ID)
		if err != nil {
			return err
		}
		if in.Number != latest+1 {
			return apperr.ErrSequenceConflict
		}

		now := s.now()
		if err := tx.Model(&Chapter{}).
			Where("story_id = ? AND closed_at IS NULL", st.ID).
			Update("closed_at", now).Error; err != nil {
			return fmt.Errorf("close previous chapters: %w", err)
		}

		ch = Chapter{
			StoryID:       st.ID,
			ChapterNumber: in.Number,
			Title:         in.Title,
			Content:       in.Content,
			QuestionText:  in.Question,
			ExpiresAt:     now.Add(time.Duration(in.DurationHours) * time.Hour),
			CreatedAt:     now,
		}
		for i, text := range in.Options {
			ch.Options = append(ch.Options, Option{Position: i + 1, Text: text})
		}
		if err := tx.Create(&ch).Error; err != nil {
			if pgerr.IsUniqueViolation(err) {
				return apperr.ErrSequenceConflict
			}
			return fmt.Errorf("create chapter: %w", err)
		}

		return jobs.Emit(tx, in.AuthorID, events.ChapterPublished, events.ChapterPublishedData{
			StoryID:       st.ID,
			ChapterID:     ch.ID,
			ChapterNumber: ch.ChapterNumber,
			ExpiresAt:     ch.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Chapter published",
		zap.Uint64("storyID", ch.StoryID),
		zap.Uint64("chapterID", ch.ID),
		zap.Int("number", ch.ChapterNumber),
		zap.Time("expiresAt", ch.ExpiresAt),
	)
	return &ch, nil
}

// DeleteChapter removes the latest chapter while its window is still open and
// returns the chapter that is now latest, or nil when none is left. The
// previous chapter keeps its closed_at, so it does not reopen.
func (s *Service) DeleteChapter(ctx context.Context, chapterID, authorID uint64) (*Chapter, error) {
	if authorID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	var latest *Chapter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		storyID, err := chapterStoryID(tx, chapterID)
		if err != nil {
			return err
		}
		st, err := lockStory(tx, storyID, "UPDATE")
		if err != nil {
			return err
		}
		if st.AuthorID != authorID {
			return apperr.ErrUnauthorized
		}

		var ch Chapter
		if err := tx.Where("id = ?", chapterID).Take(&ch).Error; err != nil {
			return fmt.Errorf("load chapter: %w", err)
		}
		maxNum, err := latestNumber(tx, storyID)
		if err != nil {
			return err
		}
		if ch.ChapterNumber != maxNum {
			return apperr.ErrNotLatest
		}
		if st.IsCompleted {
			return apperr.ErrStoryCompleted
		}
		if StateAt(&ch, true, false, s.now()) != StateOpen {
			return apperr.ErrVotingClosed
		}

		if err := deleteChapterRows(tx, []uint64{ch.ID}); err != nil {
			return err
		}

		var prev Chapter
		err = tx.Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
			Where("story_id = ?", storyID).
			Order("chapter_number desc").
			Take(&prev).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("load latest chapter: %w", err)
		default:
			latest = &prev
		}

		data := events.ChapterDeletedData{StoryID: storyID, ChapterID: ch.ID}
		if latest != nil {
			data.LatestChapterID = &latest.ID
		}
		return jobs.Emit(tx, authorID, events.ChapterDeleted, data)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Chapter deleted", zap.Uint64("chapterID", chapterID), zap.Uint64("authorID", authorID))
	return latest, nil
}

// CompleteStory marks the story finished and closes all of its chapters.
func (s *Service) CompleteStory(ctx context.Context, storyID, authorID uint64) error {
	if authorID == 0 {
		return apperr.ErrUnauthenticated
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := lockStory(tx, storyID, "UPDATE")
		if err != nil {
			return err
		}
		if st.AuthorID != authorID {
			return apperr.ErrUnauthorized
		}
		if st.IsCompleted {
			return apperr.ErrAlreadyCompleted
		}

		if err := tx.Model(&Story{}).Where("id = ?", storyID).Update("is_completed", true).Error; err != nil {
			return fmt.Errorf("complete story: %w", err)
		}
		if err := tx.Model(&Chapter{}).
			Where("story_id = ? AND closed_at IS NULL", storyID).
			Update("closed_at", s.now()).Error; err != nil {
			return fmt.Errorf("close chapters: %w", err)
		}

		return jobs.Emit(tx, authorID, events.StoryCompleted, events.StoryCompletedData{
			StoryID:  storyID,
			AuthorID: authorID,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("Story completed", zap.Uint64("storyID", storyID))
	return nil
}

// VoteTarget is a chapter loaded for voting together with its derived state.
type VoteTarget struct {
	Chapter Chapter
	State   State
}

// LoadForVote reads the chapter inside tx after taking a shared lock on its
// story. Publish, delete and complete take the same row FOR UPDATE, so the
// returned state holds until tx ends.
func LoadForVote(tx *gorm.DB, chapterID uint64, now time.Time) (*VoteTarget, error) {
	storyID, err := chapterStoryID(tx, chapterID)
	if err != nil {
		return nil, err
	}
	st, err := lockStory(tx, storyID, "SHARE")
	if err != nil {
		return nil, err
	}

	var ch Chapter
	err = tx.Where("id = ?", chapterID).Take(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chapter: %w", err)
	}

	maxNum, err := latestNumber(tx, storyID)
	if err != nil {
		return nil, err
	}
	return &VoteTarget{
		Chapter: ch,
		State:   StateAt(&ch, ch.ChapterNumber == maxNum, st.IsCompleted, now),
	}, nil
}

func chapterStoryID(tx *gorm.DB, chapterID uint64) (uint64, error) {
	var ch Chapter
	err := tx.Select("id", "story_id").Where("id = ?", chapterID).Take(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load chapter: %w", err)
	}
	return ch.StoryID, nil
}
