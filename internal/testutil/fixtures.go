package testutil

import (
	"fmt"
	"testing"
	"time"

	"storyvote/internal/auth"
	"storyvote/internal/ledger"
	"storyvote/internal/story"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var userSeq int

// CreateUser inserts a user with an empty profile and returns its id.
func CreateUser(t *testing.T, gdb *gorm.DB) uint64 {
	t.Helper()
	userSeq++
	u := auth.User{
		Email:        fmt.Sprintf("reader%d@example.com", userSeq),
		PasswordHash: "x",
		Pseudonym:    fmt.Sprintf("reader%d", userSeq),
	}
	require.NoError(t, gdb.Create(&u).Error)
	require.NoError(t, ledger.EnsureProfile(gdb, u.ID))
	return u.ID
}

// SetBalance overwrites the user's coin balance.
func SetBalance(t *testing.T, gdb *gorm.DB, userID uint64, coins int64) {
	t.Helper()
	require.NoError(t, ledger.EnsureProfile(gdb, userID))
	require.NoError(t, gdb.Model(&ledger.Profile{}).Where("user_id = ?", userID).Update("coin_balance", coins).Error)
}

func Balance(t *testing.T, gdb *gorm.DB, userID uint64) int64 {
	t.Helper()
	var p ledger.Profile
	require.NoError(t, gdb.Where("user_id = ?", userID).Take(&p).Error)
	return p.CoinBalance
}

// CreateStory inserts a story directly.
func CreateStory(t *testing.T, gdb *gorm.DB, authorID uint64) *story.Story {
	t.Helper()
	st := story.Story{AuthorID: authorID, Title: "The Lighthouse", AgeRating: "12+"}
	require.NoError(t, gdb.Create(&st).Error)
	return &st
}

// CreateChapter inserts a chapter with three options, bypassing the lifecycle
// rules so tests can set up closed or expired chapters.
func CreateChapter(t *testing.T, gdb *gorm.DB, storyID uint64, number int, expiresAt time.Time, closed bool) *story.Chapter {
	t.Helper()
	ch := story.Chapter{
		StoryID:       storyID,
		ChapterNumber: number,
		Title:         fmt.Sprintf("Chapter %d", number),
		Content:       "The fog rolled in.",
		QuestionText:  "Where next?",
		ExpiresAt:     expiresAt,
		Options: []story.Option{
			{Position: 1, Text: "Climb the stairs"},
			{Position: 2, Text: "Wait by the door"},
			{Position: 3, Text: "Run to the boat"},
		},
	}
	if closed {
		now := time.Now()
		ch.ClosedAt = &now
	}
	require.NoError(t, gdb.Create(&ch).Error)
	return &ch
}

// OptionVotes returns the current tally of one option.
func OptionVotes(t *testing.T, gdb *gorm.DB, optionID uint64) int64 {
	t.Helper()
	var o story.Option
	require.NoError(t, gdb.Where("id = ?", optionID).Take(&o).Error)
	return o.VoteCount
}
