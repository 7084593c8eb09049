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

const sectionsCacheKey = "sections"

// Well-known website sections. Any other valid key is created on first
// write.
const (
	SectionHomeHeroTitle    = "home_hero_title"
	SectionHomeHeroSubtitle = "home_hero_subtitle"
	SectionAbout            = "about_content"
	SectionContact          = "contact_content"
)

type SectionService struct {
	store  storage.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewSectionService(store storage.Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *SectionService {
	c, logger = defaults(c, logger)
	return &SectionService{store: store, cache: c, ttl: ttl, logger: logger}
}

// All maps every stored section name to its content.
func (s *SectionService) All(ctx context.Context) (map[string]string, error) {
	return cache.Fetch(ctx, s.cache, s.logger, sectionsCacheKey, s.ttl, func(ctx context.Context) (map[string]string, error) {
		sections, err := s.store.ListSections(ctx)
		if err != nil {
			return nil, persistence("list sections", err)
		}

		out := make(map[string]string, len(sections))
		for _, sec := range sections {
			out[sec.Name] = sec.Content
		}
		return out, nil
	})
}

func (s *SectionService) Get(ctx context.Context, name string) (*storage.Section, error) {
	name = strings.TrimSpace(name)
	if !ValidSectionName(name) {
		return nil, &NotFoundError{Resource: "section"}
	}

	sec, err := s.store.GetSection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "section"}
	}
	if err != nil {
		return nil, persistence("load section", err)
	}
	return sec, nil
}

// Upsert replaces the content of name, creating the section if needed.
// content may be empty but not nil.
func (s *SectionService) Upsert(ctx context.Context, name string, content *string) (*storage.Section, error) {
	fields := sectionFields{Name: strings.TrimSpace(name), Content: content}
	if err := check(fields); err != nil {
		return nil, err
	}

	sec, err := s.store.UpsertSection(ctx, fields.Name, *content)
	if err != nil {
		return nil, persistence("upsert section", err)
	}

	cache.Invalidate(ctx, s.cache, s.logger, sectionsCacheKey)

	s.logger.Info("website section updated", "section", sec.Name)
	return sec, nil
}
