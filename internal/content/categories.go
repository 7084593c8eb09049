package content

import (
	"blogpress/internal/cache"
	"blogpress/internal/storage"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const categoriesCacheKey = "categories"

var errCategoryInUse = &ConflictError{Message: "Cannot delete category. It is being used by blog posts."}

type CategoryService struct {
	store  storage.Store
	slugs  *SlugResolver
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCategoryService(store storage.Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CategoryService {
	c, logger = defaults(c, logger)
	return &CategoryService{
		store:  store,
		slugs:  NewSlugResolver(store),
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// List returns every category ordered by name, with its published post
// count.
func (s *CategoryService) List(ctx context.Context) ([]*storage.Category, error) {
	return cache.Fetch(ctx, s.cache, s.logger, categoriesCacheKey, s.ttl, func(ctx context.Context) ([]*storage.Category, error) {
		cats, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, persistence("list categories", err)
		}
		return cats, nil
	})
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*storage.Category, error) {
	c, err := s.store.GetCategoryByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "category"}
	}
	if err != nil {
		return nil, persistence("load category", err)
	}
	return c, nil
}

// FindBySlug looks a category up among the listed ones.
func (s *CategoryService) FindBySlug(ctx context.Context, slug string) (*storage.Category, error) {
	cats, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, &NotFoundError{Resource: "category"}
}

func (s *CategoryService) Create(ctx context.Context, name string) (*storage.Category, error) {
	fields := categoryFields{Name: strings.TrimSpace(name)}
	if err := check(fields); err != nil {
		return nil, err
	}

	slug, err := s.slugs.ResolveSlug(ctx, EntityCategory, fields.Name, 0)
	if err != nil {
		return nil, err
	}

	c, err := s.store.CreateCategory(ctx, fields.Name, slug)
	if errors.Is(err, storage.ErrUniqueViolation) {
		return nil, &ConflictError{Message: "a category with this name already exists"}
	}
	if err != nil {
		return nil, persistence("create category", err)
	}

	cache.Invalidate(ctx, s.cache, s.logger, categoriesCacheKey)

	s.logger.Info("category created", "id", c.ID, "slug", c.Slug)
	return c, nil
}

// Update renames a category. The slug is derived again from the new name
// and must stay unique.
func (s *CategoryService) Update(ctx context.Context, id int64, name string) (*storage.Category, error) {
	fields := categoryFields{Name: strings.TrimSpace(name)}
	if err := check(fields); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	slug, err := s.slugs.ResolveSlug(ctx, EntityCategory, fields.Name, id)
	if err != nil {
		return nil, err
	}

	c, err := s.store.UpdateCategory(ctx, id, fields.Name, slug)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, &NotFoundError{Resource: "category"}
	case errors.Is(err, storage.ErrUniqueViolation):
		return nil, &ConflictError{Message: "a category with this name already exists"}
	case err != nil:
		return nil, persistence("update category", err)
	}

	cache.Invalidate(ctx, s.cache, s.logger, categoriesCacheKey)

	s.logger.Info("category updated", "id", c.ID, "slug", c.Slug)
	return c, nil
}

// Delete removes a category no post references. The check runs here
// before the store's foreign key is ever reached.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	n, err := s.store.CountPostsInCategory(ctx, id)
	if err != nil {
		return persistence("count category posts", err)
	}
	if n > 0 {
		return errCategoryInUse
	}

	err = s.store.DeleteCategory(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &NotFoundError{Resource: "category"}
	case errors.Is(err, storage.ErrForeignKeyViolation):
		// a post was attached between the count and the delete
		return errCategoryInUse
	case err != nil:
		return persistence("delete category", err)
	}

	cache.Invalidate(ctx, s.cache, s.logger, categoriesCacheKey)

	s.logger.Info("category deleted", "id", id)
	return nil
}
