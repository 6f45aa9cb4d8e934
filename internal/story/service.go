// Package story implements stories, chapters and the rules that decide which
// chapter accepts votes.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db     *gorm.DB
	voting config.Voting
	log    *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, voting config.Voting, logger *zap.Logger) *Service {
	return &Service{db: db, voting: voting, log: logger.Named("ChapterLifecycle"), now: time.Now}
}

type CreateStoryInput struct {
	Title       string
	Description string
	AgeRating   string
}

// UpdateStoryInput changes only the fields that are set.
type UpdateStoryInput struct {
	Title       *string
	Description *string
	AgeRating   *string
}

func (s *Service) CreateStory(ctx context.Context, authorID uint64, in CreateStoryInput) (*Story, error) {
	if authorID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalidInput)
	}
	rating := strings.TrimSpace(in.AgeRating)
	if rating == "" {
		rating = "0+"
	}

	st := Story{
		AuthorID:    authorID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		AgeRating:   rating,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return &st, nil
}

func (s *Service) UpdateStory(ctx context.Context, storyID, authorID uint64, in UpdateStoryInput) (*Story, error) {
	var st Story
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockStory(tx, storyID, "UPDATE")
		if err != nil {
			return err
		}
		if locked.AuthorID != authorID {
			return apperr.ErrUnauthorized
		}

		updates := map[string]any{}
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return fmt.Errorf("%w: title cannot be blank", apperr.ErrInvalidInput)
			}
			updates["title"] = t
		}
		if in.Description != nil {
			updates["description"] = strings.TrimSpace(*in.Description)
		}
		if in.AgeRating != nil && strings.TrimSpace(*in.AgeRating) != "" {
			updates["age_rating"] = strings.TrimSpace(*in.AgeRating)
		}
		if len(updates) > 0 {
			if err := tx.Model(&Story{}).Where("id = ?", storyID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update story: %w", err)
			}
		}
		return tx.Where("id = ?", storyID).Take(&st).Error
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteStory removes the story with its chapters, options, votes and coin
// votes. Ledger transactions stay.
func (s *Service) DeleteStory(ctx context.Context, storyID, authorID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := lockStory(tx, storyID, "UPDATE")
		if err != nil {
			return err
		}
		if st.AuthorID != authorID {
			return apperr.ErrUnauthorized
		}

		var ids []uint64
		if err := tx.Model(&Chapter{}).Where("story_id = ?", storyID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list chapters: %w", err)
		}
		if len(ids) > 0 {
			if err := deleteChapterRows(tx, ids); err != nil {
				return err
			}
		}
		if err := tx.Where("id = ?", storyID).Delete(&Story{}).Error; err != nil {
			return fmt.Errorf("delete story: %w", err)
		}

		s.log.Info("Story deleted", zap.Uint64("storyID", storyID), zap.Uint64("authorID", authorID))
		return nil
	})
}

// lockStory loads the story row with the given lock strength ("UPDATE" or
// "SHARE").
func lockStory(tx *gorm.DB, storyID uint64, strength string) (*Story, error) {
	var st Story
	err := tx.Clauses(clause.Locking{Strength: strength}).Where("id = ?", storyID).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock story: %w", err)
	}
	return &st, nil
}

// latestNumber returns the highest chapter number of the story, 0 when it has
// no chapters.
func latestNumber(tx *gorm.DB, storyID uint64) (int, error) {
	var n int
	err := tx.Model(&Chapter{}).
		Select("coalesce(max(chapter_number), 0)").
		Where("story_id = ?", storyID).
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("latest chapter number: %w", err)
	}
	return n, nil
}

// deleteChapterRows removes the chapters and everything that references them.
func deleteChapterRows(tx *gorm.DB, ids []uint64) error {
	if err := tx.Exec("delete from coin_votes where chapter_id in (?)", ids).Error; err != nil {
		return fmt.Errorf("delete coin votes: %w", err)
	}
	if err := tx.Exec("delete from votes where chapter_id in (?)", ids).Error; err != nil {
		return fmt.Errorf("delete votes: %w", err)
	}
	if err := tx.Where("chapter_id in (?)", ids).Delete(&Option{}).Error; err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	if err := tx.Where("id in (?)", ids).Delete(&Chapter{}).Error; err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}
	return nil
}
