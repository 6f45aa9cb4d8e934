package voting

import "time"

// Foreign keys from the vote tables to options, added by the migration.
const (
	FKVoteOption     = "fk_votes_option"
	FKCoinVoteOption = "fk_coin_votes_option"
)

// Vote is a reader's free vote. The composite primary key allows one per
// reader per chapter.
type Vote struct {
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ChapterID uint64    `gorm:"primaryKey;autoIncrement:false" json:"chapter_id"`
	OptionID  uint64    `gorm:"not null" json:"option_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

// CoinVote records one paid amplification and the ledger debit behind it.
type CoinVote struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	UserID        uint64    `gorm:"index;not null" json:"user_id"`
	ChapterID     uint64    `gorm:"not null" json:"chapter_id"`
	OptionID      uint64    `gorm:"not null" json:"option_id"`
	Coins         int64     `gorm:"not null" json:"coins"`
	Weight        int64     `gorm:"not null" json:"weight"`
	TransactionID uint64    `gorm:"not null" json:"transaction_id"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}
