package handlers

import (
	"blogpress/internal/content"
	"blogpress/internal/middleware"
	"blogpress/internal/storage"
	"net/http"

	"github.com/gosimple/slug"
)

type postResponse struct {
	*storage.Post
	ImageWarning string `json:"image_warning,omitempty"`
}

func newPostResponse(w *content.PostWrite) postResponse {
	resp := postResponse{Post: w.Post}
	if w.Image != nil {
		resp.ImageWarning = w.Image.Warning
	}
	return resp
}

// HandleListBlogs serves GET /api/blogs. Only admins may ask for drafts.
func (h *BlogHandler) HandleListBlogs() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := h.Posts.List(r.Context(), content.ListQuery{
			Category: q.Get("category"),
			Status:   q.Get("status"),
			Page:     queryInt(r, "page"),
			Limit:    queryInt(r, "limit"),
		}, middleware.IsAdmin(r.Context()))
		if err != nil {
			h.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, page)
	})
}

func (h *BlogHandler) HandleGetBlog() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := r.PathValue("slug")
		if !slug.IsSlug(s) {
			h.NotFound(w, r, "Blog not found")
			return
		}

		post, err := h.Posts.Get(r.Context(), s, middleware.IsAdmin(r.Context()))
		if err != nil {
			h.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, post)
	})
}

func (h *BlogHandler) HandleCreateBlog() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		in, err := h.parsePostInput(w, r)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		// the service discards it too, this covers the parse failure path
		defer in.Image.Discard()
		if err != nil {
			h.fail(w, r, err)
			return
		}

		written, err := h.Posts.Create(r.Context(), in)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("blog created", "id", written.Post.ID, "slug", written.Post.Slug)
		writeJSON(w, http.StatusCreated, newPostResponse(written))
	})
}

func (h *BlogHandler) HandleUpdateBlog() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		in, err := h.parsePostInput(w, r)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		defer in.Image.Discard()
		if err != nil {
			h.fail(w, r, err)
			return
		}

		written, err := h.Posts.Update(r.Context(), id, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("blog updated", "id", written.Post.ID, "slug", written.Post.Slug)
		writeJSON(w, http.StatusOK, newPostResponse(written))
	})
}

func (h *BlogHandler) HandleDeleteBlog() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		if err := h.Posts.Delete(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}

		h.log(r).Info("blog deleted", "id", id)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Blog deleted successfully"})
	})
}

// HandleStats serves the admin dashboard counters.
func (h *BlogHandler) HandleStats() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.Posts.Stats(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
}
