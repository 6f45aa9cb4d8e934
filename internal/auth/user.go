package auth

import (
	"fmt"
	"strings"
	"time"
)

// User is the local account record. Coin balances live in ledger.Profile.
// Other readers only ever see the display name.
type User struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"-"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Pseudonym    string    `gorm:"not null;default:''" json:"pseudonym"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (u User) DisplayName() string {
	if p := strings.TrimSpace(u.Pseudonym); p != "" {
		return p
	}
	return fmt.Sprintf("reader-%d", u.ID)
}

// NormalizeEmail is applied on both register and login so lookups match the
// stored address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
