package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/httpserver/handlers"
)

func init() { Register(registerEvents) }

// No request timeout here: the socket lives as long as the session.
// Authentication happens in-band, on the first frame.
func registerEvents(r chi.Router, d deps.Deps) {
	r.Get("/api/events", handlers.Events(d))
}
