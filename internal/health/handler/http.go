package handler

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
)

// Live answers /healthz: the process is up.
func Live(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready answers /readyz with 200 when c.Check passes and 503 otherwise.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "message": err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
