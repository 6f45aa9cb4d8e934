package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr             string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL          string        `envconfig:"DATABASE_URL" required:"true"`
	CORSAllowedOrigins   []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`
	CORSMaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"5m"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Embedded: their keys are read without a prefix.
	Voting
	Payment

	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IntentCacheTTL time.Duration `envconfig:"INTENT_CACHE_TTL" default:"24h"`

	RabbitMQURL    string        `envconfig:"RABBITMQ_URL"`
	EventsExchange string        `envconfig:"EVENTS_EXCHANGE" default:"storyvote.events"`
	OutboxPoll     time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"800ms"`
	OutboxWorkerID string        `envconfig:"OUTBOX_WORKER_ID" default:"outbox-1"`
}

// Voting holds the weights and window limits for chapters.
type Voting struct {
	CoinCost     int64 `envconfig:"VOTE_COIN_COST" default:"1"`
	CoinWeight   int64 `envconfig:"VOTE_COIN_WEIGHT" default:"3"`
	DefaultHours int   `envconfig:"DEFAULT_VOTING_HOURS" default:"24"`
	MaxHours     int   `envconfig:"MAX_VOTING_HOURS" default:"168"`
}

// Payment configures the YooKassa adapter.
type Payment struct {
	ShopID         string          `envconfig:"YOOKASSA_SHOP_ID"`
	SecretKey      string          `envconfig:"YOOKASSA_SECRET_KEY"`
	APIURL         string          `envconfig:"YOOKASSA_API_URL" default:"https://api.yookassa.ru/v3"`
	ReturnURL      string          `envconfig:"PAYMENT_RETURN_URL" default:"https://storyvoter.vercel.app/payment-success"`
	CoinPrice      decimal.Decimal `envconfig:"COIN_PRICE_RUB" default:"10.00"`
	VerifyWebhooks bool            `envconfig:"WEBHOOK_VERIFY_PAYMENTS" default:"true"`
	Timeout        time.Duration   `envconfig:"YOOKASSA_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	origins := cfg.CORSAllowedOrigins[:0]
	for _, o := range cfg.CORSAllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSAllowedOrigins = origins

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: missing env DATABASE_URL")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: missing env JWT_SECRET")
	}
	if c.Voting.CoinCost <= 0 || c.Voting.CoinWeight <= 0 {
		return fmt.Errorf("config: VOTE_COIN_COST and VOTE_COIN_WEIGHT must be positive")
	}
	if c.Voting.DefaultHours <= 0 || c.Voting.MaxHours < c.Voting.DefaultHours {
		return fmt.Errorf("config: voting hours out of range (default=%d max=%d)", c.Voting.DefaultHours, c.Voting.MaxHours)
	}
	if !c.Payment.CoinPrice.IsPositive() {
		return fmt.Errorf("config: COIN_PRICE_RUB must be positive")
	}
	return nil
}
