package handlers

import (
	"net/http"

	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Redis string `json:"redis"`
}

// Readyz reports whether this instance can do useful work. Redis is
// the one dependency that can silently go away at runtime: without it
// there are no sessions and no event fanout.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redisStatus := "ok"
		status := http.StatusOK

		if err := d.RedisClient.Ping(r.Context()).Err(); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			redisStatus = err.Error()
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, readyzResponse{
			Ready: status == http.StatusOK,
			Redis: redisStatus,
		})
	}
}
