package handlers

import (
	"blogpress/internal/middleware"
	"blogpress/internal/storage"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const maxLoginBody = 4 << 10

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Admin     *storage.Admin `json:"admin"`
	CSRFToken string         `json:"csrf_token"`
}

// HandleLogin verifies the credentials and binds the session to the admin.
func (h *BlogHandler) HandleLogin() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		admin, err := h.Admins.GetAdminByEmail(r.Context(), email)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "Invalid credentials")
			default:
				h.InternalError(w, r, err)
			}
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		if err := h.Sessions.Login(r.Context(), admin.ID); err != nil {
			h.InternalError(w, r, err)
			return
		}

		h.log(r).Info("admin logged in", "id", admin.ID, "email", admin.Email)

		writeJSON(w, http.StatusOK, sessionResponse{Admin: admin, CSRFToken: middleware.CSRFToken(r)})
	})
}

func (h *BlogHandler) HandleLogout() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// destroy session in store and clear cookie
		if err := h.Sessions.Logout(r.Context()); err != nil {
			h.InternalError(w, r, err)
			return
		}

		h.log(r).Info("admin logged out", "id", middleware.AdminID(r.Context()))
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
	})
}

// HandleSession returns the admin behind the session.
func (h *BlogHandler) HandleSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.Admins.GetAdminByID(r.Context(), middleware.AdminID(r.Context()))
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// admin removed while the session was alive
				h.Sessions.Logout(r.Context())
				writeError(w, http.StatusUnauthorized, "Authentication required")
			default:
				h.InternalError(w, r, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{Admin: admin, CSRFToken: middleware.CSRFToken(r)})
	})
}

// HandleCSRFToken gives the frontend a token before it has a session.
func (h *BlogHandler) HandleCSRFToken() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, map[string]string{"csrf_token": middleware.CSRFToken(r)})
	})
}
