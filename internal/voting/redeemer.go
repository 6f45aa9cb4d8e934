package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/config"
	"storyvote/internal/ledger"
	"storyvote/internal/story"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Redeemer spends coins to add weight to an option the reader can already vote
// on. Repeat redemptions on the same chapter are allowed; each one costs
// CoinCost and adds CoinWeight.
type Redeemer struct {
	db     *gorm.DB
	voting config.Voting
	log    *zap.Logger
	now    func() time.Time
}

func NewRedeemer(db *gorm.DB, voting config.Voting, logger *zap.Logger) *Redeemer {
	return &Redeemer{db: db, voting: voting, log: logger.Named("CoinRedemption"), now: time.Now}
}

type Redemption struct {
	Option      story.Option       `json:"option"`
	CoinVote    CoinVote           `json:"coin_vote"`
	Transaction ledger.Transaction `json:"transaction"`
}

// RedeemCoinVote debits the balance, adds weight to the option and records
// the coin vote in one transaction. The debit is conditional on the balance,
// so concurrent redemptions can never take it below zero.
func (r *Redeemer) RedeemCoinVote(ctx context.Context, chapterID, optionID, userID uint64) (*Redemption, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}

	var out Redemption
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := story.LoadForVote(tx, chapterID, r.now())
		if err != nil {
			return err
		}

		var v Vote
		err = tx.Where("user_id = ? AND chapter_id = ?", userID, chapterID).Take(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotYetVoted
		}
		if err != nil {
			return fmt.Errorf("load free vote: %w", err)
		}

		if target.State != story.StateOpen {
			return apperr.ErrChapterClosed
		}

		t, err := ledger.Debit(tx, userID, r.voting.CoinCost, ledger.KindVoteBoost)
		if err != nil {
			return err
		}
		if err := addWeight(tx, chapterID, optionID, r.voting.CoinWeight, &out.Option); err != nil {
			return err
		}

		cv := CoinVote{
			UserID:        userID,
			ChapterID:     chapterID,
			OptionID:      optionID,
			Coins:         r.voting.CoinCost,
			Weight:        r.voting.CoinWeight,
			TransactionID: t.ID,
			CreatedAt:     r.now(),
		}
		if err := tx.Create(&cv).Error; err != nil {
			return fmt.Errorf("insert coin vote: %w", err)
		}

		out.CoinVote = cv
		out.Transaction = *t
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			r.log.Info("Redemption refused: insufficient balance", zap.Uint64("userID", userID))
		}
		return nil, err
	}

	r.log.Info("Coin vote redeemed",
		zap.Uint64("chapterID", chapterID),
		zap.Uint64("optionID", optionID),
		zap.Uint64("userID", userID),
		zap.Int64("coins", r.voting.CoinCost),
	)
	return &out, nil
}
