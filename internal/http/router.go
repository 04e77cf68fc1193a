package httpx

import (
	"net/http"

	"log/slog"

	"github.com/iamapoorv476/my-excildrawapp/internal/app"
	"github.com/iamapoorv476/my-excildrawapp/internal/store"
	"github.com/iamapoorv476/my-excildrawapp/internal/ws"
	"github.com/iamapoorv476/my-excildrawapp/pkg/auth"
	"github.com/iamapoorv476/my-excildrawapp/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, db *store.Postgres, cache *store.RecentChats) http.Handler {
	mw := NewMiddleware(cfg)
	rooms := &RoomsAPI{DB: db}
	authAPI := &AuthAPI{DB: db, JWT: auth.New(cfg.JWTSecret)}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db.Ping(r.Context()) != nil || cache.Ping(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	}))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint; the hub does its own token handshake
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Auth endpoints
	mux.Handle("/api/auth/signup", http.HandlerFunc(authAPI.Signup))
	mux.Handle("/api/auth/login", http.HandlerFunc(authAPI.Login))
	mux.Handle("/api/auth/me", mw.Auth(http.HandlerFunc(authAPI.Me)))

	// Room endpoints: creation needs a JWT, lookups are public
	mux.Handle("POST /api/rooms", mw.Auth(http.HandlerFunc(rooms.Create)))
	mux.Handle("GET /api/rooms/{slug}", http.HandlerFunc(rooms.GetBySlug))
	mux.Handle("GET /api/rooms/{id}/chats", http.HandlerFunc(rooms.History))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
