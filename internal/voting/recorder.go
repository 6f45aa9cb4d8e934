// Package voting records free votes and coin-paid amplifications.
package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/db/pgerr"
	"storyvote/internal/story"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder casts free votes.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, log: logger.Named("VoteRecorder"), now: time.Now}
}

// CastFreeVote records the reader's single free vote on the chapter and adds 1
// to the option. The votes primary key decides duplicates, so two racing
// requests cannot both succeed.
func (r *Recorder) CastFreeVote(ctx context.Context, chapterID, optionID, userID uint64) (*story.Option, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	var opt story.Option
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := story.LoadForVote(tx, chapterID, r.now())
		if err != nil {
			return err
		}
		if target.State != story.StateOpen {
			return apperr.ErrChapterClosed
		}

		v := Vote{UserID: userID, ChapterID: chapterID, OptionID: optionID, CreatedAt: r.now()}
		if err := tx.Create(&v).Error; err != nil {
			switch {
			case pgerr.IsUniqueViolation(err):
				return apperr.ErrAlreadyVoted
			case pgerr.IsForeignKeyViolation(err) && pgerr.ConstraintName(err) == FKVoteOption:
				return fmt.Errorf("%w: option %d", apperr.ErrNotFound, optionID)
			}
			return fmt.Errorf("insert vote: %w", err)
		}

		return addWeight(tx, chapterID, optionID, 1, &opt)
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("Free vote recorded",
		zap.Uint64("chapterID", chapterID),
		zap.Uint64("optionID", optionID),
		zap.Uint64("userID", userID),
	)
	return &opt, nil
}

// addWeight increments the option's tally in place and reads the result into
// out. An option outside the chapter is NotFound.
func addWeight(tx *gorm.DB, chapterID, optionID uint64, weight int64, out *story.Option) error {
	res := tx.Model(&story.Option{}).
		Where("id = ? AND chapter_id = ?", optionID, chapterID).
		Update("vote_count", gorm.Expr("vote_count + ?", weight))
	if res.Error != nil {
		return fmt.Errorf("increment option: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: option %d is not part of chapter %d", apperr.ErrNotFound, optionID, chapterID)
	}

	err := tx.Where("id = ?", optionID).Take(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}
