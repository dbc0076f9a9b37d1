package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/httpserver/handlers"
	"github.com/satchelhq/satchel/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

// The auth endpoints are the only unauthenticated writes in the
// system, so they sit behind the per-IP limiter.
func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.AuthRateBurst,
			RefillPerIPPerMin: d.AuthRatePerMinute,
			MaxEntries:        10_000,
		}))
		r.Get("/login", handlers.Login(d))
		r.Get("/callback", handlers.Callback(d))
		r.Post("/claim", handlers.Claim(d))
		r.Post("/refresh", handlers.Refresh(d))
		r.Post("/logout", handlers.Logout(d))
	})
}
