package handlers

import (
	"blogpress/internal/content"
	"blogpress/internal/middleware"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// fail maps service errors onto status codes. Anything unclassified is a
// 500 whose details only reach the log.
func (h *BlogHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var moved *content.MovedError
	switch {
	case errors.As(err, &moved):
		location := "/api/blogs/" + moved.Slug
		w.Header().Set("Location", location)
		writeJSON(w, http.StatusMovedPermanently, map[string]string{"slug": moved.Slug, "location": location})
	case errors.Is(err, content.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, content.ErrNotFound):
		h.NotFound(w, r, err.Error())
	case errors.Is(err, content.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.InternalError(w, r, err)
	}
}

// InternalError handles 500 errors
func (h *BlogHandler) InternalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log(r).Error("500 internal server error", "err", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// NotFound handles 404 errors
func (h *BlogHandler) NotFound(w http.ResponseWriter, r *http.Request, msg string) {
	h.log(r).Warn("404 not found", "path", r.URL.Path, "method", r.Method, "ip", r.RemoteAddr)
	writeError(w, http.StatusNotFound, msg)
}

// HandleNotFound answers unknown API routes.
func (h *BlogHandler) HandleNotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.NotFound(w, r, "Route not found")
	})
}

func (h *BlogHandler) log(r *http.Request) *slog.Logger {
	return middleware.LoggerFrom(r.Context(), h.Logger)
}
