package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog catalog.Catalog
	Store   CartStore
	Panel   Panel

	// Session may be nil; then only the Authorization header identifies
	// the caller and logout is not routed.
	Session interface {
		TokenSource
		Logouter
	}

	Storage Pinger

	// Publisher, when set, announces purchases and logouts.
	Publisher Publisher

	RequestTimeout time.Duration
	Log            logrus.FieldLogger
}

func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}

	catalogHandler := NewCatalogHandler(d.Catalog, d.RequestTimeout)
	cartHandler := NewCartHandler(d.Store, d.Catalog, d.RequestTimeout)
	panelHandler := NewPanelHandler(d.Panel, d.Publisher, d.RequestTimeout, d.Log)
	eventsHandler := NewEventsHandler(d.Store, d.Log)

	var tokens TokenSource
	if d.Session != nil {
		tokens = d.Session
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(TokenMiddleware(tokens))

	withTimeout := func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))
		r.Use(middleware.Compress(5))
	}
	authHandler := NewAuthHandler(d.Session, d.Publisher, d.Log)

	r.Group(func(r chi.Router) {
		withTimeout(r)
		r.Get("/health", health(d.Storage, d.RequestTimeout))
		r.Get("/dashboard/{role}", authHandler.Dashboard)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived, so outside the timeout and compression group
		r.Get("/cart/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			withTimeout(r)

			r.Get("/categories", catalogHandler.Categories)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", catalogHandler.List)
				r.Get("/compare", catalogHandler.Compare)
				r.Route("/compare/picks", func(r chi.Router) {
					r.Get("/", catalogHandler.Picks)
					r.Delete("/", catalogHandler.ResetPicks)
					r.Post("/{id}", catalogHandler.TogglePick)
				})
				r.Get("/{id}", catalogHandler.Get)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{id}", cartHandler.RemoveItem)
			})

			r.Route("/panel", func(r chi.Router) {
				r.Get("/", panelHandler.Get)
				r.Post("/open", panelHandler.Open)
				r.Post("/close", panelHandler.Close)
				r.Post("/checkout", panelHandler.Checkout)
				r.Post("/cancel", panelHandler.Cancel)
				r.Post("/purchase", panelHandler.Purchase)
				r.Post("/items/{id}/increment", panelHandler.Increment)
				r.Post("/items/{id}/decrement", panelHandler.Decrement)
			})

			r.Get("/me", authHandler.Me)
			if d.Session != nil {
				r.Post("/logout", authHandler.Logout)
			}
		})
	})

	return r
}

func health(storage Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if err := storage.Ping(ctx); err != nil {
				respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
