package api

import (
	"net/http"
	"time"

	"lootledger/domain/entities"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig controls the optional parts of the HTTP surface
type RouterConfig struct {
	JWTSecret       string
	AllowedOrigins  []string
	DemoSpinEnabled bool
	RequestTimeout  time.Duration
}

// NewRouter mounts every endpoint and wraps the tree in otelhttp
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recover)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", h.Verify)
		if cfg.DemoSpinEnabled {
			r.Post("/boxes/{boxID}/demo", h.DemoSpin)
		}

		r.Group(func(r chi.Router) {
			r.Use(Auth(cfg.JWTSecret))

			r.Post("/wagers", h.PlaceWager)

			r.Route("/me", func(r chi.Router) {
				r.Get("/balance", h.GetBalance)
				r.Post("/balance/move", h.MoveBalance)
				r.Post("/debits", h.SelfDebit)
				r.Post("/transfers", h.UserTransfer)
				r.Post("/orders/{orderID}/payment", h.PayOrder)
				r.Get("/transactions", h.ListTransactions)
				r.Get("/spins", h.ListMySpins)
				r.Post("/spins/{spinID}/resell", h.ResellSpin)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(entities.RoleAdmin))

				r.Post("/topups", h.AdminTopUp)
				r.Post("/debits", h.AdminDebit)
				r.Post("/transfers", h.AdminTransfer)
				r.Get("/spins", h.AdminListSpins)
				r.Get("/users", h.AdminListUsers)
				r.Post("/orders/{orderID}/payment", h.AdminPayOrder)
				r.Post("/orders/{orderID}/release", h.AdminReleaseVendorPayment)
				r.Get("/users/{userID}/balance", h.AdminUserBalance)
				r.Get("/users/{userID}/transactions", h.AdminUserTransactions)
				r.Delete("/transactions/{referenceID}", h.AdminDeleteTransaction)
			})
		})
	})

	return otelhttp.NewHandler(r, "lootledger.http")
}
