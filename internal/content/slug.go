package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Slugify lower-cases s, trims it and collapses every run of characters
// outside [a-z0-9] into a single hyphen. Leading and trailing hyphens are
// dropped, so a title without letters or digits yields "".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))

	pendingDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	return b.String()
}

type EntityType int

const (
	EntityPost EntityType = iota
	EntityCategory
)

func (e EntityType) String() string {
	switch e {
	case EntityPost:
		return "post"
	case EntityCategory:
		return "category"
	default:
		return "unknown"
	}
}

// SlugLookup reports whether slug is taken by a record other than excludeID.
// storage.Store satisfies it.
type SlugLookup interface {
	PostSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	CategorySlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

type SlugResolver struct {
	store SlugLookup
	now   func() time.Time
}

func NewSlugResolver(store SlugLookup) *SlugResolver {
	return &SlugResolver{store: store, now: time.Now}
}

// ResolveSlug derives a slug from title that no other record of the given
// entity type holds. excludeID is the id of the record being updated, 0 on
// create.
//
// Posts on create get the first free "-N" suffix, posts on update get the
// current Unix millisecond timestamp, and categories never get a suffix: a
// taken category slug is a *ConflictError.
func (r *SlugResolver) ResolveSlug(ctx context.Context, entity EntityType, title string, excludeID int64) (string, error) {
	base := Slugify(title)
	if base == "" {
		field := "title"
		if entity == EntityCategory {
			field = "name"
		}
		return "", invalid(field, field+" must contain at least one letter or digit")
	}

	var (
		resolved string
		err      error
	)

	switch entity {
	case EntityPost:
		if excludeID == 0 {
			resolved, err = r.nextFree(ctx, base)
		} else {
			resolved, err = r.stamped(ctx, base, excludeID)
		}
	case EntityCategory:
		resolved, err = r.exclusive(ctx, base, excludeID)
	default:
		return "", fmt.Errorf("unknown entity type %d", entity)
	}
	if err != nil {
		return "", err
	}

	if !slug.IsSlug(resolved) {
		return "", invalid("slug", fmt.Sprintf("derived slug %q is not url safe", resolved))
	}

	return resolved, nil
}

func (r *SlugResolver) nextFree(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		taken, err := r.store.PostSlugExists(ctx, candidate, 0)
		if err != nil {
			return "", persistence("check post slug", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

func (r *SlugResolver) stamped(ctx context.Context, base string, excludeID int64) (string, error) {
	taken, err := r.store.PostSlugExists(ctx, base, excludeID)
	if err != nil {
		return "", persistence("check post slug", err)
	}
	if !taken {
		return base, nil
	}
	return base + "-" + strconv.FormatInt(r.now().UnixMilli(), 10), nil
}

func (r *SlugResolver) exclusive(ctx context.Context, base string, excludeID int64) (string, error) {
	taken, err := r.store.CategorySlugExists(ctx, base, excludeID)
	if err != nil {
		return "", persistence("check category slug", err)
	}
	if taken {
		return "", &ConflictError{Message: "a category with this name already exists"}
	}
	return base, nil
}
