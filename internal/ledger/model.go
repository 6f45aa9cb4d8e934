package ledger

import "time"

// Transaction kinds.
const (
	KindPurchase  = "purchase"
	KindVoteBoost = "vote_boost"
)

// Profile carries a user's coin balance. The CHECK constraint backs the
// guarded debit: the balance can never go below zero.
type Profile struct {
	UserID      uint64    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CoinBalance int64     `gorm:"not null;default:0;check:chk_profiles_coin_balance,coin_balance >= 0" json:"coin_balance"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// Transaction is append-only. Positive amounts are credits, negative are
// debits. PaymentReference holds the gateway payment id for purchases and is
// unique when set.
type Transaction struct {
	ID               uint64    `gorm:"primaryKey" json:"id"`
	UserID           uint64    `gorm:"index;not null" json:"user_id"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Kind             string    `gorm:"type:text;not null" json:"kind"`
	PaymentReference *string   `gorm:"type:text" json:"payment_reference,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
}
