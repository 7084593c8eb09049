package content

import (
	"blogpress/internal/storage"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/adrg/frontmatter"
)

const maxImportFileSize = 10 * 1024 * 1024

const defaultImportCategory = "Uncategorized"

type importMeta struct {
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"` // for SEO
	Tags            []string `yaml:"tags"`
	Category        string   `yaml:"category"`
	Status          string   `yaml:"status"`
	Draft           bool     `yaml:"draft"`
	MetaTitle       string   `yaml:"meta_title"`
	MetaDescription string   `yaml:"meta_description"`
	Image           string   `yaml:"image"`
}

type ImportFailure struct {
	Path string
	Err  error
}

type ImportReport struct {
	Imported []string // slugs, in walk order
	Failed   []ImportFailure
}

// Importer creates posts from a directory of markdown files with YAML
// front matter. Posts go through PostService, so slug and validation rules
// apply as for API writes. Local images referenced by a file are ingested
// like uploads.
type Importer struct {
	posts      *PostService
	categories *CategoryService
	media      *MediaStore
	markdown   *MarkdownRenderer
	logger     *slog.Logger
}

func NewImporter(posts *PostService, categories *CategoryService, media *MediaStore, logger *slog.Logger) *Importer {
	return &Importer{
		posts:      posts,
		categories: categories,
		media:      media,
		markdown:   NewMarkdownRenderer(),
		logger:     logger,
	}
}

// ImportDir imports every *.md file below dir. A file that fails is
// reported and skipped; only an unreadable dir or a cancelled ctx stops
// the walk.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*ImportReport, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("could not open directory %s: %w", dir, err)
	}
	defer root.Close()

	im.logger.Info("starting import", "dir", dir)

	fsys := root.FS()
	report := &ImportReport{}

	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(path.Ext(name)) != ".md" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		slug, err := im.importFile(ctx, fsys, name)
		if err != nil {
			im.logger.Warn("skipping file", "path", name, "err", err)
			report.Failed = append(report.Failed, ImportFailure{Path: name, Err: err})
			return nil
		}

		im.logger.Info("imported post", "path", name, "slug", slug)
		report.Imported = append(report.Imported, slug)
		return nil
	})

	return report, err
}

func (im *Importer) importFile(ctx context.Context, fsys fs.FS, name string) (string, error) {
	data, err := readLimited(fsys, name)
	if err != nil {
		return "", err
	}

	var meta importMeta
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		// no yaml detected or parsing failed, proceed with original raw bytes
		body = data
	}
	if meta.Title == "" {
		meta.Title = fallbackTitleScan(bytes.NewReader(body))
	}

	var staged []*StagedUpload
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()

	dir := path.Dir(name)
	html, err := im.markdown.RenderWith(body, func(dest string) (string, error) {
		s, err := im.stage(ctx, fsys, path.Join(dir, dest))
		if err != nil {
			im.logger.Warn("could not import image", "file", name, "image", dest, "err", err)
			return "", err
		}
		staged = append(staged, s)
		s.Ingest(ctx)
		return s.URL(), nil
	})
	if err != nil {
		return "", err
	}

	category, err := im.category(ctx, meta.Category)
	if err != nil {
		return "", err
	}

	description := string(html)
	tags := strings.Join(meta.Tags, ",")
	metaDescription := meta.MetaDescription
	if metaDescription == "" {
		metaDescription = meta.Description
	}
	status := meta.Status
	if status == "" && !meta.Draft {
		status = "published"
	}

	in := PostInput{
		Title:           &meta.Title,
		Description:     &description,
		Tags:            &tags,
		CategoryID:      &category.ID,
		MetaTitle:       &meta.MetaTitle,
		MetaDescription: &metaDescription,
		Status:          &status,
	}

	if meta.Image != "" {
		cover, err := im.stage(ctx, fsys, path.Join(dir, meta.Image))
		if err != nil {
			return "", fmt.Errorf("cover image: %w", err)
		}
		in.Image = cover
	}

	w, err := im.posts.Create(ctx, in)
	if err != nil {
		return "", err
	}

	for _, s := range staged {
		s.Commit(ctx)
	}

	return w.Post.Slug, nil
}

func (im *Importer) stage(ctx context.Context, fsys fs.FS, name string) (*StagedUpload, error) {
	f, err := fsys.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadingFile, name, err)
	}
	defer f.Close()

	return im.media.Stage(ctx, path.Base(name), f)
}

// category finds the category named in front matter, creating it when
// missing.
func (im *Importer) category(ctx context.Context, name string) (*storage.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultImportCategory
	}

	c, err := im.categories.FindBySlug(ctx, Slugify(name))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return im.categories.Create(ctx, name)
}

func readLimited(fsys fs.FS, name string) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadingFile, name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadingFile, name, err)
	}
	if len(data) > maxImportFileSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
	}
	return data, nil
}

func fallbackTitleScan(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	// if title is not within first 20 lines, it's likely not there at all
	linesScanned := 0
	for scanner.Scan() {
		linesScanned++
		if linesScanned > 20 {
			break
		}
		if title, found := strings.CutPrefix(scanner.Text(), "# "); found {
			return strings.TrimSpace(title)
		}
	}
	return "Untitled Post"
}
