package handlers

import (
	"blogpress/internal/content"
	"encoding/json"
	"net/http"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func decodeCategory(w http.ResponseWriter, r *http.Request) (categoryRequest, error) {
	var req categoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		return req, &content.ValidationError{Field: "body", Message: "Invalid request body"}
	}
	return req, nil
}

func (h *BlogHandler) HandleListCategories() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		categories, err := h.Categories.List(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	})
}

func (h *BlogHandler) HandleCreateCategory() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCategory(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		category, err := h.Categories.Create(r.Context(), req.Name)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("category created", "id", category.ID, "slug", category.Slug)
		writeJSON(w, http.StatusCreated, category)
	})
}

func (h *BlogHandler) HandleUpdateCategory() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		req, err := decodeCategory(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		category, err := h.Categories.Update(r.Context(), id, req.Name)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, category)
	})
}

func (h *BlogHandler) HandleDeleteCategory() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		if err := h.Categories.Delete(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("category deleted", "id", id)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Category deleted successfully"})
	})
}
