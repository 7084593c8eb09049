package content

import (
	"blogpress/internal/storage"
	"strings"
)

// ResolveStatusFilter turns the status a caller asked for into the filter
// applied to both the list and the count query. Non-admin callers always
// get published posts, whatever they asked for.
func ResolveStatusFilter(isAdmin bool, requested string) (storage.StatusFilter, error) {
	if !isAdmin {
		return storage.StatusFilterPublished, nil
	}

	switch storage.StatusFilter(strings.ToLower(strings.TrimSpace(requested))) {
	case "", storage.StatusFilterPublished:
		return storage.StatusFilterPublished, nil
	case storage.StatusFilterDraft:
		return storage.StatusFilterDraft, nil
	case storage.StatusFilterAll:
		return storage.StatusFilterAll, nil
	default:
		return "", invalid("status", "status must be one of published, draft, all")
	}
}

// ParseStatus validates a status carried by a write. Empty means draft.
func ParseStatus(s string) (storage.Status, error) {
	switch storage.Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", storage.StatusDraft:
		return storage.StatusDraft, nil
	case storage.StatusPublished:
		return storage.StatusPublished, nil
	default:
		return "", invalid("status", "status must be draft or published")
	}
}

// Visible reports whether p may be shown to the caller.
func Visible(p *storage.Post, isAdmin bool) bool {
	return isAdmin || p.Status == storage.StatusPublished
}
