package handlers

import (
	"blogpress/internal/content"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	// room for the text fields around the image part
	formOverhead   = 1 << 20
	formMemory     = 1 << 20
	maxJSONBody    = 1 << 20
	imageFormField = "image"
)

var postFields = []string{"title", "description", "tags", "category_id", "meta_title", "meta_description", "status"}

// postPayload is the JSON shape of a blog write. category_id may arrive as
// a number or a numeric string.
type postPayload struct {
	Title           *string      `json:"title"`
	Description     *string      `json:"description"`
	Tags            *string      `json:"tags"`
	CategoryID      *json.Number `json:"category_id"`
	MetaTitle       *string      `json:"meta_title"`
	MetaDescription *string      `json:"meta_description"`
	Status          *string      `json:"status"`
	Format          string       `json:"format"`
}

// parsePostInput reads a blog write from a multipart form (with an
// optional image part) or a JSON body. Fields the client did not send stay
// nil. A staged image is returned inside the input; the caller owns it.
func (h *BlogHandler) parsePostInput(w http.ResponseWriter, r *http.Request) (content.PostInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return h.parseMultipart(w, r)
	case "application/json":
		return parseJSON(w, r)
	default:
		return content.PostInput{}, &content.ValidationError{Field: "body", Message: "expected multipart/form-data or application/json"}
	}
}

func (h *BlogHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (content.PostInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+formOverhead)

	var in content.PostInput
	if err := r.ParseMultipartForm(formMemory); err != nil {
		return in, h.formError(err)
	}

	values := map[string]*string{}
	for _, name := range postFields {
		if v, ok := r.MultipartForm.Value[name]; ok && len(v) > 0 {
			values[name] = &v[0]
		}
	}

	in.Title = values["title"]
	in.Description = values["description"]
	in.Tags = values["tags"]
	in.MetaTitle = values["meta_title"]
	in.MetaDescription = values["meta_description"]
	in.Status = values["status"]
	in.Format = r.FormValue("format")

	id, err := parseCategoryID(values["category_id"])
	if err != nil {
		return in, err
	}
	in.CategoryID = id

	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, h.formError(err)
	}
	defer file.Close()

	if header.Size > h.MaxUploadBytes {
		return in, h.tooLarge()
	}

	staged, err := h.Media.Stage(r.Context(), header.Filename, file)
	if err != nil {
		return in, err
	}
	in.Image = staged

	return in, nil
}

func parseJSON(w http.ResponseWriter, r *http.Request) (content.PostInput, error) {
	var p postPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&p); err != nil {
		return content.PostInput{}, &content.ValidationError{Field: "body", Message: "Invalid request body"}
	}

	in := content.PostInput{
		Title:           p.Title,
		Description:     p.Description,
		Tags:            p.Tags,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Status:          p.Status,
		Format:          p.Format,
	}

	if p.CategoryID != nil {
		raw := p.CategoryID.String()
		id, err := parseCategoryID(&raw)
		if err != nil {
			return in, err
		}
		in.CategoryID = id
	}

	return in, nil
}

// parseCategoryID treats an empty value like an absent one.
func parseCategoryID(raw *string) (*int64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, &content.ValidationError{Field: "category_id", Message: "category_id must be a positive number"}
	}
	return &id, nil
}

func (h *BlogHandler) formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return h.tooLarge()
	}
	return &content.ValidationError{Field: "body", Message: "Invalid form data"}
}

func (h *BlogHandler) tooLarge() error {
	return &content.ValidationError{
		Field:   imageFormField,
		Message: "File too large. Maximum size is " + humanize.IBytes(uint64(h.MaxUploadBytes)) + ".",
	}
}

// pathID reads a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &content.ValidationError{Field: name, Message: "invalid " + name}
	}
	return id, nil
}

// queryInt returns 0 for a missing or malformed value; the services
// apply their own defaults.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
