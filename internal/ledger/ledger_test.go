package ledger_test

import (
	"context"
	"sync"
	"testing"

	"storyvote/internal/apperr"
	"storyvote/internal/ledger"
	"storyvote/internal/testutil"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LedgerSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *ledger.Service
}

func (s *LedgerSuite) SetupSuite() {
	s.db = testutil.PostgresDB(s.T())
	s.svc = ledger.NewService(s.db, zap.NewNop())
}

func (s *LedgerSuite) SetupTest() {
	testutil.Truncate(s.T(), s.db)
}

func TestLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) TestDebitGuardsBalance() {
	uid := testutil.CreateUser(s.T(), s.db)
	testutil.SetBalance(s.T(), s.db, uid, 2)

	t, err := ledger.Debit(s.db, uid, 2, ledger.KindVoteBoost)
	s.Require().NoError(err)
	s.Equal(int64(-2), t.Amount)

	_, err = ledger.Debit(s.db, uid, 1, ledger.KindVoteBoost)
	s.ErrorIs(err, apperr.ErrInsufficientBalance)
	s.Equal(int64(0), testutil.Balance(s.T(), s.db, uid))
}

func (s *LedgerSuite) TestDebitWithoutProfile() {
	_, err := ledger.Debit(s.db, 999, 1, ledger.KindVoteBoost)
	s.ErrorIs(err, apperr.ErrInsufficientBalance)
}

func (s *LedgerSuite) TestCreditOncePerPaymentReference() {
	uid := testutil.CreateUser(s.T(), s.db)

	credited, t, err := ledger.Credit(s.db, uid, 10, "pay-1")
	s.Require().NoError(err)
	s.True(credited)
	s.Require().NotNil(t.PaymentReference)
	s.Equal("pay-1", *t.PaymentReference)

	credited, _, err = ledger.Credit(s.db, uid, 10, "pay-1")
	s.Require().NoError(err)
	s.False(credited)

	s.Equal(int64(10), testutil.Balance(s.T(), s.db, uid))

	var n int64
	s.Require().NoError(s.db.Model(&ledger.Transaction{}).Where("payment_reference = ?", "pay-1").Count(&n).Error)
	s.Equal(int64(1), n)
}

func (s *LedgerSuite) TestCreditCreatesMissingProfile() {
	credited, _, err := ledger.Credit(s.db, 77, 5, "pay-new")
	s.Require().NoError(err)
	s.True(credited)

	bal, err := s.svc.Balance(context.Background(), 77)
	s.Require().NoError(err)
	s.Equal(int64(5), bal)
}

func (s *LedgerSuite) TestConcurrentCreditsSamePayment() {
	uid := testutil.CreateUser(s.T(), s.db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	credits := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var ok bool
			err := s.db.Transaction(func(tx *gorm.DB) error {
				var err error
				ok, _, err = ledger.Credit(tx, uid, 10, "pay-race")
				return err
			})
			if err == nil && ok {
				mu.Lock()
				credits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, credits)
	s.Equal(int64(10), testutil.Balance(s.T(), s.db, uid))
}

func (s *LedgerSuite) TestTransactionsNewestFirst() {
	uid := testutil.CreateUser(s.T(), s.db)
	_, _, err := ledger.Credit(s.db, uid, 10, "pay-a")
	s.Require().NoError(err)
	_, err = ledger.Debit(s.db, uid, 1, ledger.KindVoteBoost)
	s.Require().NoError(err)

	txs, err := s.svc.Transactions(context.Background(), uid, 0)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(int64(-1), txs[0].Amount)
	s.Equal(int64(10), txs[1].Amount)
}

func (s *LedgerSuite) TestCheckConstraintBlocksNegative() {
	uid := testutil.CreateUser(s.T(), s.db)

	err := s.db.Model(&ledger.Profile{}).Where("user_id = ?", uid).
		Update("coin_balance", gorm.Expr("coin_balance - 1")).Error
	s.Require().Error(err)
	s.Equal(int64(0), testutil.Balance(s.T(), s.db, uid))
}
