package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is a liveness endpoint for container probes.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports storage backend state. A failing primary does not make
// the service unready: the file mirror keeps sessions usable, so the
// response degrades to "degraded" instead of 503.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{
				"status":  "ok",
				"primary": "disabled",
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			WriteJSON(w, http.StatusOK, map[string]string{
				"status":  "degraded",
				"primary": "unreachable",
			})
			return
		}

		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"primary": "ok",
		})
	})
}
