package http

import (
	"net/http"

	"storyvote/internal/auth"
	"storyvote/internal/config"
	"storyvote/internal/http/handler"
	mw "storyvote/internal/http/middleware"
	"storyvote/internal/ledger"
	"storyvote/internal/payment"
	"storyvote/internal/story"
	"storyvote/internal/voting"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the services the routes are served by.
type Deps struct {
	DB         *gorm.DB
	JWT        *auth.JWT
	Log        *zap.Logger
	Stories    *story.Service
	Ledger     *ledger.Service
	Recorder   *voting.Recorder
	Redeemer   *voting.Redeemer
	Intents    *payment.IntentService
	Reconciler *payment.Reconciler
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(mw.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: cfg.CORSAllowCredentials,
			MaxAge:           cfg.CORSMaxAge,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Log: d.Log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	requireAuth := auth.RequireAuth(d.JWT)

	me := &handler.MeHandler{DB: d.DB, Ledger: d.Ledger, Log: d.Log}
	r.With(requireAuth).Get("/me", me.Me)
	r.With(requireAuth).Get("/me/transactions", me.Transactions)

	sh := &handler.StoryHandler{Stories: d.Stories, Ledger: d.Ledger, Log: d.Log}
	r.Route("/stories", func(r chi.Router) {
		r.With(auth.OptionalAuth(d.JWT)).Get("/{id}", sh.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/", sh.Create)
			r.Patch("/{id}", sh.Update)
			r.Delete("/{id}", sh.Delete)
			r.Post("/{id}/complete", sh.Complete)
			r.Post("/{id}/chapters", sh.PublishChapter)
		})
	})

	vh := &handler.VoteHandler{Recorder: d.Recorder, Redeemer: d.Redeemer, Log: d.Log}
	r.Route("/chapters", func(r chi.Router) {
		r.Use(requireAuth)

		r.Delete("/{id}", sh.DeleteChapter)
		r.Post("/{id}/votes", vh.Free)
		r.Post("/{id}/coin-votes", vh.Coin)
	})

	ph := &handler.PaymentHandler{Intents: d.Intents, Log: d.Log}
	r.With(requireAuth).Post("/payments", ph.Create)

	wh := &handler.WebhookHandler{Reconciler: d.Reconciler, Log: d.Log}
	r.Post("/webhooks/yookassa", wh.YooKassa)

	return r
}
