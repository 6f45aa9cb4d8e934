package voting_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/config"
	"storyvote/internal/ledger"
	"storyvote/internal/payment"
	"storyvote/internal/story"
	"storyvote/internal/testutil"
	"storyvote/internal/voting"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type VotingSuite struct {
	suite.Suite
	db       *gorm.DB
	recorder *voting.Recorder
	redeemer *voting.Redeemer
	stories  *story.Service

	author uint64
	reader uint64
	st     *story.Story
	ch     *story.Chapter
}

func (s *VotingSuite) SetupSuite() {
	s.db = testutil.PostgresDB(s.T())
	cfg := config.Voting{CoinCost: 1, CoinWeight: 3, DefaultHours: 24, MaxHours: 168}
	s.recorder = voting.NewRecorder(s.db, zap.NewNop())
	s.redeemer = voting.NewRedeemer(s.db, cfg, zap.NewNop())
	s.stories = story.NewService(s.db, cfg, zap.NewNop())
}

func (s *VotingSuite) SetupTest() {
	testutil.Truncate(s.T(), s.db)
	s.author = testutil.CreateUser(s.T(), s.db)
	s.reader = testutil.CreateUser(s.T(), s.db)
	s.st = testutil.CreateStory(s.T(), s.db, s.author)
	s.ch = testutil.CreateChapter(s.T(), s.db, s.st.ID, 1, time.Now().Add(24*time.Hour), false)
}

func TestVotingSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(VotingSuite))
}

// assertTally checks sum(vote_count) == free votes + weight * redemptions.
func (s *VotingSuite) assertTally(chapterID uint64) {
	var sum, votes, redemptions int64
	s.Require().NoError(s.db.Model(&story.Option{}).Where("chapter_id = ?", chapterID).
		Select("coalesce(sum(vote_count), 0)").Scan(&sum).Error)
	s.Require().NoError(s.db.Model(&voting.Vote{}).Where("chapter_id = ?", chapterID).Count(&votes).Error)
	s.Require().NoError(s.db.Model(&voting.CoinVote{}).Where("chapter_id = ?", chapterID).Count(&redemptions).Error)
	s.Equal(votes+3*redemptions, sum)
}

func (s *VotingSuite) TestFreeVote() {
	ctx := context.Background()
	opt, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)
	s.Equal(int64(1), opt.VoteCount)

	_, err = s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[1].ID, s.reader)
	s.ErrorIs(err, apperr.ErrAlreadyVoted)

	s.Equal(int64(0), testutil.OptionVotes(s.T(), s.db, s.ch.Options[1].ID))
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestFreeVoteRejections() {
	ctx := context.Background()

	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, 0)
	s.ErrorIs(err, apperr.ErrUnauthenticated)

	_, err = s.recorder.CastFreeVote(ctx, 987654, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrNotFound)

	// An option of another chapter is not found and leaves no vote behind.
	other := testutil.CreateStory(s.T(), s.db, s.author)
	otherCh := testutil.CreateChapter(s.T(), s.db, other.ID, 1, time.Now().Add(time.Hour), false)
	_, err = s.recorder.CastFreeVote(ctx, s.ch.ID, otherCh.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrNotFound)

	_, err = s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.NoError(err)
}

func (s *VotingSuite) TestFreeVoteForMissingOptionIsNotFound() {
	_, err := s.recorder.CastFreeVote(context.Background(), s.ch.ID, 987654, s.reader)
	s.ErrorIs(err, apperr.ErrNotFound)

	var votes int64
	s.Require().NoError(s.db.Model(&voting.Vote{}).Where("user_id = ?", s.reader).Count(&votes).Error)
	s.Zero(votes)
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestVoteOptionForeignKeysExist() {
	var names []string
	s.Require().NoError(s.db.Raw(
		`select conname from pg_constraint where conname in (?, ?) order by conname`,
		voting.FKCoinVoteOption, voting.FKVoteOption,
	).Scan(&names).Error)
	s.Equal([]string{voting.FKCoinVoteOption, voting.FKVoteOption}, names)
}

func (s *VotingSuite) TestFreeVoteClosedChapters() {
	ctx := context.Background()

	expired := testutil.CreateChapter(s.T(), s.db, testutil.CreateStory(s.T(), s.db, s.author).ID, 1, time.Now().Add(-time.Minute), false)
	_, err := s.recorder.CastFreeVote(ctx, expired.ID, expired.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrChapterClosed)

	// A newer chapter supersedes s.ch even without closed_at set.
	testutil.CreateChapter(s.T(), s.db, s.st.ID, 2, time.Now().Add(time.Hour), false)
	_, err = s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrChapterClosed)
}

func (s *VotingSuite) TestConcurrentFreeVotesOneSucceeds() {
	const n = 20
	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.recorder.CastFreeVote(context.Background(), s.ch.ID, s.ch.Options[i%3].ID, s.reader)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrAlreadyVoted):
				dup.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(n-1), dup.Load())
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestConcurrentFreeVotesManyReaders() {
	const n = 25
	readers := make([]uint64, n)
	for i := range readers {
		readers[i] = testutil.CreateUser(s.T(), s.db)
	}

	var wg sync.WaitGroup
	for _, uid := range readers {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			_, err := s.recorder.CastFreeVote(context.Background(), s.ch.ID, s.ch.Options[0].ID, uid)
			s.NoError(err)
		}(uid)
	}
	wg.Wait()

	s.Equal(int64(n), testutil.OptionVotes(s.T(), s.db, s.ch.Options[0].ID))
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestRedeemRequiresFreeVote() {
	testutil.SetBalance(s.T(), s.db, s.reader, 5)

	_, err := s.redeemer.RedeemCoinVote(context.Background(), s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrNotYetVoted)
	s.Equal(int64(5), testutil.Balance(s.T(), s.db, s.reader))

	_, err = s.redeemer.RedeemCoinVote(context.Background(), s.ch.ID, s.ch.Options[0].ID, 0)
	s.ErrorIs(err, apperr.ErrUnauthenticated)
}

func (s *VotingSuite) TestRedeemInsufficientBalance() {
	ctx := context.Background()
	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)

	_, err = s.redeemer.RedeemCoinVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrInsufficientBalance)
	s.Equal(int64(1), testutil.OptionVotes(s.T(), s.db, s.ch.Options[0].ID))
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestRedeemOnClosedChapter() {
	ctx := context.Background()
	testutil.SetBalance(s.T(), s.db, s.reader, 5)
	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)

	s.Require().NoError(s.stories.CompleteStory(ctx, s.st.ID, s.author))

	_, err = s.redeemer.RedeemCoinVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrChapterClosed)
	s.Equal(int64(5), testutil.Balance(s.T(), s.db, s.reader))
}

func (s *VotingSuite) TestRedeemBadOptionRollsBackDebit() {
	ctx := context.Background()
	testutil.SetBalance(s.T(), s.db, s.reader, 5)
	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)

	_, err = s.redeemer.RedeemCoinVote(ctx, s.ch.ID, 999999, s.reader)
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Equal(int64(5), testutil.Balance(s.T(), s.db, s.reader))

	var txs int64
	s.Require().NoError(s.db.Model(&ledger.Transaction{}).Where("user_id = ?", s.reader).Count(&txs).Error)
	s.Zero(txs)
}

// Repeat redemptions are allowed; each one is charged and weighted.
func (s *VotingSuite) TestRepeatRedemptions() {
	ctx := context.Background()
	testutil.SetBalance(s.T(), s.db, s.reader, 3)
	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		_, err := s.redeemer.RedeemCoinVote(ctx, s.ch.ID, s.ch.Options[i%2].ID, s.reader)
		s.Require().NoError(err)
	}
	_, err = s.redeemer.RedeemCoinVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.ErrorIs(err, apperr.ErrInsufficientBalance)

	s.Equal(int64(0), testutil.Balance(s.T(), s.db, s.reader))
	s.Equal(int64(1+3+3), testutil.OptionVotes(s.T(), s.db, s.ch.Options[0].ID))
	s.Equal(int64(3), testutil.OptionVotes(s.T(), s.db, s.ch.Options[1].ID))
	s.assertTally(s.ch.ID)
}

func (s *VotingSuite) TestConcurrentRedemptionsNeverOverspend() {
	ctx := context.Background()
	testutil.SetBalance(s.T(), s.db, s.reader, 1)
	_, err := s.recorder.CastFreeVote(ctx, s.ch.ID, s.ch.Options[0].ID, s.reader)
	s.Require().NoError(err)

	const n = 10
	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.redeemer.RedeemCoinVote(context.Background(), s.ch.ID, s.ch.Options[0].ID, s.reader)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientBalance):
				short.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(n-1), short.Load())
	s.Equal(int64(0), testutil.Balance(s.T(), s.db, s.reader))
	s.Equal(int64(4), testutil.OptionVotes(s.T(), s.db, s.ch.Options[0].ID))
	s.assertTally(s.ch.ID)
}

// Chapter 1 closed, chapter 2 open. The reader votes, spends a coin, then a
// purchase notification arrives twice.
func (s *VotingSuite) TestExampleScenario() {
	ctx := context.Background()
	testutil.Truncate(s.T(), s.db)
	author := testutil.CreateUser(s.T(), s.db)
	reader := testutil.CreateUser(s.T(), s.db)
	st := testutil.CreateStory(s.T(), s.db, author)
	testutil.CreateChapter(s.T(), s.db, st.ID, 1, time.Now().Add(-time.Hour), true)
	ch2 := testutil.CreateChapter(s.T(), s.db, st.ID, 2, time.Now().Add(24*time.Hour), false)
	optA := ch2.Options[0]
	testutil.SetBalance(s.T(), s.db, reader, 5)

	prior := testutil.OptionVotes(s.T(), s.db, optA.ID)
	_, err := s.recorder.CastFreeVote(ctx, ch2.ID, optA.ID, reader)
	s.Require().NoError(err)
	s.Equal(prior+1, testutil.OptionVotes(s.T(), s.db, optA.ID))

	red, err := s.redeemer.RedeemCoinVote(ctx, ch2.ID, optA.ID, reader)
	s.Require().NoError(err)
	s.Equal(int64(-1), red.Transaction.Amount)
	s.Equal(int64(4), testutil.Balance(s.T(), s.db, reader))
	s.Equal(prior+4, testutil.OptionVotes(s.T(), s.db, optA.ID))

	reconciler := payment.NewReconciler(s.db, nil, false, zap.NewNop())
	body := []byte(`{"type":"notification","event":"payment.succeeded","object":{"id":"P","status":"succeeded",` +
		`"amount":{"value":"100.00","currency":"RUB"},"metadata":{"userId":"` + strconv.FormatUint(reader, 10) + `","coins":"10"}}}`)

	res, err := reconciler.HandlePaymentNotification(ctx, body)
	s.Require().NoError(err)
	s.Equal(payment.OutcomeCredited, res.Outcome)

	res, err = reconciler.HandlePaymentNotification(ctx, body)
	s.Require().NoError(err)
	s.Equal(payment.OutcomeDuplicate, res.Outcome)

	s.Equal(int64(14), testutil.Balance(s.T(), s.db, reader))
	var n int64
	s.Require().NoError(s.db.Model(&ledger.Transaction{}).Where("payment_reference = ?", "P").Count(&n).Error)
	s.Equal(int64(1), n)
	s.assertTally(ch2.ID)
}
