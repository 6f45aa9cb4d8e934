package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/db/pgerr"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The functions below take the caller's transaction so balance changes commit
// together with the vote or reconciliation step they belong to.

// EnsureProfile creates an empty profile for userID if none exists.
func EnsureProfile(tx *gorm.DB, userID uint64) error {
	p := Profile{UserID: userID, UpdatedAt: time.Now()}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
}

// Debit subtracts coins from the balance only if it covers them and appends
// the matching negative transaction. A missing profile or short balance
// returns apperr.ErrInsufficientBalance.
func Debit(tx *gorm.DB, userID uint64, coins int64, kind string) (*Transaction, error) {
	if coins <= 0 {
		return nil, fmt.Errorf("%w: debit must be positive", apperr.ErrInvalidAmount)
	}

	res := tx.Model(&Profile{}).
		Where("user_id = ? AND coin_balance >= ?", userID, coins).
		Updates(map[string]any{
			"coin_balance": gorm.Expr("coin_balance - ?", coins),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		if pgerr.IsCheckViolation(res.Error) {
			return nil, apperr.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrInsufficientBalance
	}

	t := Transaction{UserID: userID, Amount: -coins, Kind: kind, CreatedAt: time.Now()}
	if err := tx.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("insert debit transaction: %w", err)
	}
	return &t, nil
}

// Credit records a purchase keyed by paymentRef and adds coins to the balance.
// The transaction row is inserted first; when the unique payment reference
// already exists nothing is inserted, the balance is left alone and credited
// is false.
func Credit(tx *gorm.DB, userID uint64, coins int64, paymentRef string) (credited bool, t *Transaction, err error) {
	if coins <= 0 {
		return false, nil, fmt.Errorf("%w: credit must be positive", apperr.ErrInvalidAmount)
	}
	if paymentRef == "" {
		return false, nil, fmt.Errorf("%w: payment reference required", apperr.ErrInvalidInput)
	}

	ref := paymentRef
	t = &Transaction{UserID: userID, Amount: coins, Kind: KindPurchase, PaymentReference: &ref, CreatedAt: time.Now()}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(t)
	if res.Error != nil {
		return false, nil, fmt.Errorf("insert credit transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil, nil
	}

	p := Profile{UserID: userID, CoinBalance: coins, UpdatedAt: time.Now()}
	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"coin_balance": gorm.Expr("profiles.coin_balance + excluded.coin_balance"),
			"updated_at":   gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&p).Error
	if err != nil {
		return false, nil, fmt.Errorf("credit balance: %w", err)
	}
	return true, t, nil
}

// Service serves balance reads.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, log: logger.Named("Ledger")}
}

// Balance returns the user's coin balance; users without a profile have zero.
func (s *Service) Balance(ctx context.Context, userID uint64) (int64, error) {
	var p Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		s.log.Error("Failed to read balance", zap.Uint64("userID", userID), zap.Error(err))
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return p.CoinBalance, nil
}

// Transactions lists the user's most recent transactions, newest first.
func (s *Service) Transactions(ctx context.Context, userID uint64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}
