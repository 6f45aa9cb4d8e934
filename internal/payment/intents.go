package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Intent is what the client needs to send the reader to the gateway.
type Intent struct {
	ConfirmationURL string `json:"confirmationUrl"`
	PaymentID       string `json:"paymentId"`
}

type IntentService struct {
	gateway  Gateway
	cache    IntentCache
	cfg      config.Payment
	cacheTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewIntentService(gw Gateway, cache IntentCache, cfg config.Payment, cacheTTL time.Duration, logger *zap.Logger) *IntentService {
	if cache == nil {
		cache = NopIntentCache{}
	}
	return &IntentService{
		gateway:  gw,
		cache:    cache,
		cfg:      cfg,
		cacheTTL: cacheTTL,
		log:      logger.Named("PaymentIntents"),
		now:      time.Now,
	}
}

// CreateIntent opens a payment for coins at the configured price. amount must
// equal coins times the coin price, which keeps the coins written to metadata
// consistent with what the reader pays. clientKey is optional; a repeated key
// for the same coin count returns the first result.
func (s *IntentService) CreateIntent(ctx context.Context, userID uint64, amount decimal.Decimal, coins int64, clientKey string) (*Intent, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	if !amount.IsPositive() || coins <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if want := s.cfg.CoinPrice.Mul(decimal.NewFromInt(coins)); !amount.Equal(want) {
		return nil, fmt.Errorf("%w: %d coins cost %s RUB", apperr.ErrInvalidAmount, coins, want.StringFixed(2))
	}

	var cacheKey string
	if clientKey != "" {
		cacheKey = fmt.Sprintf("payment_intent:%d:%d:%s", userID, coins, clientKey)
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.log.Warn("Intent cache lookup failed", zap.Error(err))
		} else if ok {
			s.log.Info("Returning cached intent", zap.Uint64("userID", userID), zap.String("paymentID", cached.PaymentID))
			return cached, nil
		}
	}

	p, err := s.gateway.CreatePayment(ctx, CreatePaymentRequest{
		Amount:         amount,
		Description:    fmt.Sprintf("StoryVoter balance top-up: %d coins", coins),
		ReturnURL:      s.cfg.ReturnURL,
		IdempotenceKey: s.idempotenceKey(userID),
		Metadata: map[string]string{
			MetaUserID: strconv.FormatUint(userID, 10),
			MetaCoins:  strconv.FormatInt(coins, 10),
		},
	})
	if err != nil {
		s.log.Error("Payment intent failed", zap.Uint64("userID", userID), zap.Error(err))
		return nil, err
	}

	if p.Confirmation == nil {
		return nil, fmt.Errorf("%w: no confirmation in response", apperr.ErrGateway)
	}
	in := &Intent{ConfirmationURL: p.Confirmation.ConfirmationURL, PaymentID: p.ID}
	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, in, s.cacheTTL); err != nil {
			s.log.Warn("Intent cache store failed", zap.Error(err))
		}
	}

	s.log.Info("Payment intent created",
		zap.Uint64("userID", userID),
		zap.String("paymentID", p.ID),
		zap.Int64("coins", coins),
		zap.String("amount", amount.StringFixed(2)),
	)
	return in, nil
}

// idempotenceKey is unique per call: timestamp, user and a random part.
func (s *IntentService) idempotenceKey(userID uint64) string {
	return fmt.Sprintf("%d-%d-%s", s.now().UnixMilli(), userID, uuid.NewString())
}
