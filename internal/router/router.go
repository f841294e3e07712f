package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meja-pos/composer-gateway/internal/config"
	"github.com/meja-pos/composer-gateway/internal/handler"
	"github.com/meja-pos/composer-gateway/internal/menu"
	"github.com/meja-pos/composer-gateway/internal/session"
	"github.com/meja-pos/composer-gateway/internal/ws"
)

// New creates a Chi router with all gateway routes wired up.
func New(cfg *config.Config, store *menu.Store, sessions *session.Manager, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Table activity feed
	r.Get("/ws/tables/{table}/activity", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, w, r)
	})

	// Catalog browse
	menuHandler := handler.NewMenuHandler(store)
	r.Route("/menu", menuHandler.RegisterRoutes)

	// Composer sessions
	sessionHandler := handler.NewSessionHandler(sessions, store, hub)
	r.Route("/sessions", sessionHandler.RegisterRoutes)

	return r
}
