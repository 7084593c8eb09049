package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleHealth reports whether the API can reach its database.
func (h *BlogHandler) HandleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.Admins.Ping(ctx); err != nil {
			h.log(r).Error("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "ERROR", Message: "database unreachable"})
			return
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Message: h.Title + " API is running"})
	})
}
