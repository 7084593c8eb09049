package handlers

import (
	"encoding/json"
	"net/http"
)

type sectionRequest struct {
	Name    string  `json:"section_name"`
	Content *string `json:"content"`
}

type sectionResponse struct {
	Message string `json:"message"`
	Name    string `json:"section_name"`
	Content string `json:"content"`
}

// HandleWebsiteContent returns every section as one name to text map.
func (h *BlogHandler) HandleWebsiteContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sections, err := h.Sections.All(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sections)
	})
}

func (h *BlogHandler) HandleGetSection() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		section, err := h.Sections.Get(r.Context(), r.PathValue("section"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, section)
	})
}

// HandleUpsertSection serves both PUT forms; a section in the path wins
// over section_name in the body.
func (h *BlogHandler) HandleUpsertSection() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sectionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if name := r.PathValue("section"); name != "" {
			req.Name = name
		}

		section, err := h.Sections.Upsert(r.Context(), req.Name, req.Content)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("website content updated", "section", section.Name)
		writeJSON(w, http.StatusOK, sectionResponse{
			Message: "Website content updated successfully",
			Name:    section.Name,
			Content: section.Content,
		})
	})
}

