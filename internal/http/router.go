package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/domain"
	"github.com/smartcafe/storefront/internal/order"
	"github.com/smartcafe/storefront/internal/session"
)

type RouterConfig struct {
	CookieName         string
	CookieSecure       bool
	CookieTTL          time.Duration
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Deps struct {
	Log      zerolog.Logger
	Catalog  *catalog.Catalog
	Carts    cache.CartCache
	Orders   *order.Service
	Boards   *order.Boards
	Sessions *session.Manager
}

func NewRouter(cfg RouterConfig, deps Deps) (http.Handler, error) {
	render, err := NewRenderer(deps.Log)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	locks := newVisitorLocks()

	menuHandler := NewMenuHandler(deps.Catalog, deps.Carts, render, cfg.RequestTimeout, deps.Log)
	cartHandler := NewCartHandler(deps.Catalog, deps.Carts, locks, cfg.RequestTimeout, deps.Log)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.Catalog, deps.Carts, locks, render, cfg.RequestTimeout, deps.Log)
	authHandler := NewAuthHandler(deps.Boards, render, cfg.RequestTimeout, deps.Log)
	dashboardHandler := NewDashboardHandler(deps.Orders, deps.Boards, render, cfg.RequestTimeout, deps.Log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(deps.Log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(VisitorMiddleware(cfg.CookieName, cfg.CookieSecure, cfg.CookieTTL))
		r.Use(SessionMiddleware(deps.Sessions))

		r.Get("/", menuHandler.Home)

		r.Route("/cart", func(r chi.Router) {
			r.Post("/items", cartHandler.AddItem)
			r.Post("/lines/{key}/increment", cartHandler.Increment)
			r.Post("/lines/{key}/decrement", cartHandler.Decrement)
			r.Post("/clear", cartHandler.Clear)
		})

		r.Post("/orders", ordersHandler.Place)
		r.Get("/status-order", ordersHandler.Status)

		r.Get("/login", authHandler.LoginPage)
		r.Post("/login", authHandler.Login)
		r.Get("/register", authHandler.RegisterPage)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleBarista, render))
			r.Get("/", dashboardHandler.Show)
			r.Post("/orders/{id}/ready", dashboardHandler.MarkReady)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			render.Page(w, r, http.StatusNotFound, "notfound", nil)
		})
	})

	return otelhttp.NewHandler(r, "storefront"), nil
}
