package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Reservations *ReservationHandler
	Users        *UserHandler
	// Auth authenticates every route except PIN setup. Nil leaves routes open,
	// which is only useful in tests that inject a principal themselves.
	Auth       Authenticator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.Auth == nil {
			return h
		}
		return RequirePrincipal(cfg.Auth, cfg.Logger)(h)
	}

	if h := cfg.Reservations; h != nil {
		mux.Handle("POST /reservations", protect(h.CreateSingle))
		mux.Handle("POST /reservations/batch", protect(h.CreateBatch))
		mux.Handle("GET /reservations/mine", protect(h.Mine))
		mux.Handle("POST /reservations/{id}/renew", protect(h.Renew))
		mux.Handle("DELETE /reservations/{id}", protect(h.Cancel))
		mux.Handle("GET /resources/{id}/availability", protect(h.Availability))
		mux.Handle("GET /resources/{id}/reservations", protect(h.ResourceReservations))
	}

	if h := cfg.Users; h != nil {
		mux.Handle("GET /users", protect(h.List))
		mux.Handle("POST /users", protect(h.Create))
		mux.HandleFunc("POST /users/{id}/pin", h.SetupPIN)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
