package content

import (
	"blogpress/internal/cache"
	"blogpress/internal/imaging"
	"blogpress/internal/storage"
	"blogpress/internal/telemetry"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// maxSlugRetries bounds how often a create re-resolves its slug after
// losing an insert race on the unique index.
const maxSlugRetries = 3

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// PostInput carries a create or update. On update a nil field keeps the
// stored value; an empty title, description or category does too.
type PostInput struct {
	Title           *string
	Description     *string
	Tags            *string
	CategoryID      *int64
	MetaTitle       *string
	MetaDescription *string
	Status          *string
	Format          string // FormatHTML (default) or FormatMarkdown
	Image           *StagedUpload
}

type PostWrite struct {
	Post  *storage.Post
	Image *imaging.Result
}

type ListQuery struct {
	Category string
	Status   string
	Page     int
	Limit    int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type PostPage struct {
	Posts      []*storage.Post `json:"blogs"`
	Pagination Pagination      `json:"pagination"`
}

type PostService struct {
	store    storage.Store
	slugs    *SlugResolver
	media    *MediaStore
	markdown *MarkdownRenderer
	cache    cache.Cache
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

func NewPostService(store storage.Store, media *MediaStore, c cache.Cache, logger *slog.Logger, metrics *telemetry.Metrics) *PostService {
	c, logger = defaults(c, logger)
	return &PostService{
		store:    store,
		slugs:    NewSlugResolver(store),
		media:    media,
		markdown: NewMarkdownRenderer(),
		cache:    c,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *PostService) Create(ctx context.Context, in PostInput) (*PostWrite, error) {
	defer in.Image.Discard()

	fields := postFields{
		Title:           trimmed(in.Title),
		Description:     trimmed(in.Description),
		Tags:            NormalizeTags(value(in.Tags)),
		MetaTitle:       trimmed(in.MetaTitle),
		MetaDescription: trimmed(in.MetaDescription),
	}
	if in.CategoryID != nil {
		fields.CategoryID = *in.CategoryID
	}
	if fields.MetaTitle == "" {
		fields.MetaTitle = fields.Title
	}

	if err := check(fields); err != nil {
		return nil, err
	}

	status, err := ParseStatus(value(in.Status))
	if err != nil {
		return nil, err
	}

	body, err := s.body(fields.Description, in.Format)
	if err != nil {
		return nil, err
	}

	if err := s.requireCategory(ctx, fields.CategoryID); err != nil {
		return nil, err
	}

	slug, err := s.slugs.ResolveSlug(ctx, EntityPost, fields.Title, 0)
	if err != nil {
		return nil, err
	}

	post := &storage.Post{
		Title:           fields.Title,
		Slug:            slug,
		Description:     body,
		Tags:            fields.Tags,
		CategoryID:      fields.CategoryID,
		MetaTitle:       fields.MetaTitle,
		MetaDescription: fields.MetaDescription,
		Status:          status,
	}

	var image *imaging.Result
	if in.Image != nil {
		res := in.Image.Ingest(ctx)
		image = &res
		url := in.Image.URL()
		post.ImageURL = &url
	}

	var created *storage.Post
	for attempt := 1; ; attempt++ {
		created, err = s.store.CreatePost(ctx, post)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrUniqueViolation) {
			return nil, persistence("create post", err)
		}

		s.collision(ctx)
		if attempt >= maxSlugRetries {
			return nil, &ConflictError{Message: "could not allocate a unique slug, try again"}
		}

		s.logger.Warn("slug taken during insert, resolving again", "slug", post.Slug, "attempt", attempt)
		if post.Slug, err = s.slugs.ResolveSlug(ctx, EntityPost, fields.Title, 0); err != nil {
			return nil, err
		}
	}

	in.Image.Commit(ctx)
	s.written(ctx, "create")

	s.logger.Info("post created", "id", created.ID, "slug", created.Slug, "status", created.Status)
	return &PostWrite{Post: decorate(created), Image: image}, nil
}

func (s *PostService) Update(ctx context.Context, id int64, in PostInput) (*PostWrite, error) {
	defer in.Image.Discard()

	existing, err := s.store.GetPostByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "blog"}
	}
	if err != nil {
		return nil, persistence("load post", err)
	}

	next := *existing

	if t := trimmed(in.Title); t != "" {
		next.Title = t
	}
	if d := trimmed(in.Description); d != "" {
		if next.Description, err = s.body(d, in.Format); err != nil {
			return nil, err
		}
	}
	if in.CategoryID != nil && *in.CategoryID != 0 && *in.CategoryID != existing.CategoryID {
		if err := s.requireCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		next.CategoryID = *in.CategoryID
	}
	if in.Tags != nil {
		next.Tags = NormalizeTags(*in.Tags)
	}
	if in.MetaTitle != nil {
		next.MetaTitle = strings.TrimSpace(*in.MetaTitle)
	}
	if in.MetaDescription != nil {
		next.MetaDescription = strings.TrimSpace(*in.MetaDescription)
	}
	if st := trimmed(in.Status); st != "" {
		if next.Status, err = ParseStatus(st); err != nil {
			return nil, err
		}
	}

	if err := check(postFields{
		Title:           next.Title,
		Description:     next.Description,
		CategoryID:      next.CategoryID,
		Tags:            next.Tags,
		MetaTitle:       next.MetaTitle,
		MetaDescription: next.MetaDescription,
	}); err != nil {
		return nil, err
	}

	titleChanged := next.Title != existing.Title
	if titleChanged {
		if next.Slug, err = s.slugs.ResolveSlug(ctx, EntityPost, next.Title, id); err != nil {
			return nil, err
		}
	}

	var image *imaging.Result
	if in.Image != nil {
		res := in.Image.Ingest(ctx)
		image = &res
		url := in.Image.URL()
		next.ImageURL = &url
	}

	var updated *storage.Post
	for attempt := 1; ; attempt++ {
		updated, err = s.store.UpdatePost(ctx, &next)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "blog"}
		}
		if !errors.Is(err, storage.ErrUniqueViolation) || !titleChanged {
			return nil, persistence("update post", err)
		}

		s.collision(ctx)
		if attempt >= maxSlugRetries {
			return nil, &ConflictError{Message: "could not allocate a unique slug, try again"}
		}
		if next.Slug, err = s.slugs.ResolveSlug(ctx, EntityPost, next.Title, id); err != nil {
			return nil, err
		}
	}

	if updated.Slug != existing.Slug {
		if err := s.store.RecordSlugRedirect(ctx, existing.Slug, id); err != nil {
			s.logger.Warn("could not record slug redirect", "old_slug", existing.Slug, "id", id, "err", err)
		}
	}

	// the old file goes only once the row points at the new one
	if in.Image != nil {
		in.Image.Commit(ctx)
		if existing.ImageURL != nil && *existing.ImageURL != *updated.ImageURL && s.media != nil {
			s.media.Remove(ctx, *existing.ImageURL)
		}
	}

	s.written(ctx, "update")

	s.logger.Info("post updated", "id", id, "slug", updated.Slug, "status", updated.Status)
	return &PostWrite{Post: decorate(updated), Image: image}, nil
}

func (s *PostService) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.GetPostByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "blog"}
	}
	if err != nil {
		return persistence("load post", err)
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: "blog"}
		}
		return persistence("delete post", err)
	}

	if existing.ImageURL != nil && s.media != nil {
		s.media.Remove(ctx, *existing.ImageURL)
	}

	s.written(ctx, "delete")

	s.logger.Info("post deleted", "id", id, "slug", existing.Slug)
	return nil
}

// Get returns the post published under slug. A slug the post used to have
// yields a *MovedError naming the current one.
func (s *PostService) Get(ctx context.Context, slug string, isAdmin bool) (*storage.Post, error) {
	p, err := s.store.GetPostBySlug(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, s.moved(ctx, slug, isAdmin)
	}
	if err != nil {
		return nil, persistence("load post", err)
	}

	if !Visible(p, isAdmin) {
		return nil, &NotFoundError{Resource: "blog"}
	}

	return decorate(p), nil
}

func (s *PostService) moved(ctx context.Context, oldSlug string, isAdmin bool) error {
	id, err := s.store.ResolveSlugRedirect(ctx, oldSlug)
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "blog"}
	}
	if err != nil {
		return persistence("resolve slug redirect", err)
	}

	p, err := s.store.GetPostByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "blog"}
	}
	if err != nil {
		return persistence("load post", err)
	}

	if !Visible(p, isAdmin) {
		return &NotFoundError{Resource: "blog"}
	}

	return &MovedError{Slug: p.Slug}
}

// List pages through posts. The same filter drives the rows and the total,
// so Pagination.Total always matches what paging walks over.
func (s *PostService) List(ctx context.Context, q ListQuery, isAdmin bool) (*PostPage, error) {
	status, err := ResolveStatusFilter(isAdmin, q.Status)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)

	// keeps (page-1)*limit from overflowing; such a page is empty anyway
	page := min(max(q.Page, 1), math.MaxInt/limit)

	filter := storage.PostFilter{
		Status:       status,
		CategorySlug: strings.TrimSpace(q.Category),
		Offset:       (page - 1) * limit,
		Limit:        limit,
	}

	posts, err := s.store.ListPosts(ctx, filter)
	if err != nil {
		return nil, persistence("list posts", err)
	}

	total, err := s.store.CountPosts(ctx, filter)
	if err != nil {
		return nil, persistence("count posts", err)
	}

	for _, p := range posts {
		decorate(p)
	}

	return &PostPage{
		Posts: posts,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func (s *PostService) Stats(ctx context.Context) (*storage.DashboardStats, error) {
	stats, err := s.store.PostStats(ctx)
	if err != nil {
		return nil, persistence("post stats", err)
	}
	return stats, nil
}

func (s *PostService) requireCategory(ctx context.Context, id int64) error {
	_, err := s.store.GetCategoryByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return invalid("category_id", "invalid category selected")
	}
	if err != nil {
		return persistence("load category", err)
	}
	return nil
}

func (s *PostService) body(description, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatHTML:
		return description, nil
	case FormatMarkdown:
		html, err := s.markdown.Render([]byte(description))
		if err != nil {
			return "", invalid("description", err.Error())
		}
		return string(html), nil
	default:
		return "", invalid("format", "format must be html or markdown")
	}
}

// written records a post write. Category post counts change with every
// post write, so the cached category list goes too.
func (s *PostService) written(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.PostWritesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
	cache.Invalidate(ctx, s.cache, s.logger, categoriesCacheKey)
}

func (s *PostService) collision(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.SlugCollisionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", EntityPost.String())))
	}
}

func decorate(p *storage.Post) *storage.Post {
	p.TagList = SplitTags(p.Tags)
	return p
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func defaults(c cache.Cache, logger *slog.Logger) (cache.Cache, *slog.Logger) {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return c, logger
}
