package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"turnstile/internal/auth"
	"turnstile/internal/config"
	"turnstile/internal/db"
	"turnstile/internal/entitlement"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	engine *entitlement.Service,
	accounts *db.AccountRepository,
	channels *db.ChannelRepository,
	items *db.ItemRepository,
	ledger *db.LedgerRepository,
) *Server {
	jwtService := auth.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)

	accessHandler := NewAccessHandler(engine)
	creditHandler := NewCreditHandler(engine, ledger)
	referralHandler := NewReferralHandler(engine)
	callbackHandler := NewCallbackHandler(engine)
	adminHandler := NewAdminHandler(engine, accounts, channels, ledger, jwtService)
	itemHandler := NewItemHandler(items)
	healthHandler := NewHealthHandler(database)

	adminMiddleware := NewAdminMiddleware(jwtService)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Group(func(r chi.Router) {
			r.Use(limitByIP(60, time.Minute))

			r.Route("/access", func(r chi.Router) {
				r.Post("/request", accessHandler.Request)
				r.Post("/unlock", accessHandler.Unlock)
				r.Post("/claim", accessHandler.Claim)
			})

			r.Route("/credits", func(r chi.Router) {
				r.Post("/status", creditHandler.Status)
				r.Post("/request", creditHandler.Request)
				r.Post("/claim", creditHandler.Claim)
				r.Post("/history", creditHandler.History)
			})

			r.Post("/referrals", referralHandler.Register)
		})

		// The verifier retries aggressively; allow it a higher rate than
		// user-facing routes but still bounded.
		r.With(limitByIP(120, time.Minute)).Post("/verify/callback", callbackHandler.Verify)

		r.Route("/admin", func(r chi.Router) {
			r.With(limitByIP(10, time.Minute)).Post("/auth", adminHandler.Auth)

			r.Group(func(r chi.Router) {
				r.Use(adminMiddleware.RequireAdmin)

				r.Route("/accounts/{externalId}", func(r chi.Router) {
					r.Post("/ban", adminHandler.Ban)
					r.Post("/unban", adminHandler.Unban)
					r.Post("/premium", adminHandler.GrantPremium)
					r.Delete("/premium", adminHandler.RevokePremium)
					r.Post("/credits", adminHandler.TopUp)
					r.Delete("/credits", adminHandler.ZeroBalance)
					r.Get("/ledger", adminHandler.Ledger)
				})

				r.Route("/channels", func(r chi.Router) {
					r.Get("/", adminHandler.ListChannels)
					r.Post("/", adminHandler.AddChannel)
					r.Delete("/{channelId}", adminHandler.RemoveChannel)
				})

				r.Route("/items", func(r chi.Router) {
					r.Get("/", itemHandler.List)
					r.Post("/", itemHandler.Create)
					r.Patch("/{itemId}", itemHandler.SetPublished)
					r.Delete("/{itemId}", itemHandler.Delete)
				})
			})
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// limitByIP is httprate.LimitByIP with the JSON error shape the rest of
// the API uses instead of the library's plain-text 429.
func limitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many requests")
		}),
	)
}
