package content

import (
	"blogpress/internal/imaging"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/trace"
)

const uploadDir = "blogs"

// sniffLen matches the read limit mimetype uses for detection.
const sniffLen = 3072

var (
	allowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	allowedTypes      = []string{"image/jpeg", "image/png", "image/webp"}
)

// Mirror receives promoted and removed upload keys. *Replicator
// implements it.
type Mirror interface {
	Enqueue(ctx context.Context, job ReplicationJob) error
}

// MediaStore owns the blog image files: staging incoming uploads, running
// them through the ingestion pipeline and removing superseded ones.
type MediaStore struct {
	fs        imaging.FileSystem
	pipeline  *imaging.Pipeline
	mirror    Mirror
	urlPrefix string
	logger    *slog.Logger
	newID     func() (uuid.UUID, error)
}

type MediaOption func(*MediaStore)

func WithMirror(m Mirror) MediaOption {
	return func(s *MediaStore) { s.mirror = m }
}

func WithMediaLogger(l *slog.Logger) MediaOption {
	return func(s *MediaStore) { s.logger = l }
}

func NewMediaStore(fsys imaging.FileSystem, pipeline *imaging.Pipeline, urlPrefix string, opts ...MediaOption) *MediaStore {
	m := &MediaStore{
		fs:        fsys,
		pipeline:  pipeline,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		logger:    slog.New(slog.DiscardHandler),
		newID:     uuid.NewV4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StagedUpload is an upload written to disk but not yet attached to a
// post. Discard removes it unless Commit ran first, so callers defer
// Discard right after Stage.
type StagedUpload struct {
	media     *MediaStore
	id        string
	key       string
	committed bool
	result    *imaging.Result
}

// Stage writes r below the upload directory under a fresh unique name.
// The extension of filename and the sniffed content type must both be
// JPEG, PNG or WEBP.
func (m *MediaStore) Stage(ctx context.Context, filename string, r io.Reader) (*StagedUpload, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !slices.Contains(allowedExtensions, ext) {
		return nil, invalid("image", ErrUploadType.Error())
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !slices.ContainsFunc(allowedTypes, detected.Is) {
		return nil, invalid("image", ErrUploadType.Error())
	}

	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("upload id: %w", err)
	}

	s := &StagedUpload{media: m, id: id.String(), key: path.Join(uploadDir, id.String()+ext)}

	w, err := m.fs.Create(s.key)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	_, err = io.Copy(w, io.MultiReader(bytes.NewReader(head), r))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.remove(s.key)
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	m.logger.Debug("upload staged", "key", s.key, "type", detected.String())
	return s, nil
}

// Ingest bounds the staged file with the pipeline and promotes the
// result under the staged name, using the extension of the format the
// pipeline produced. A failed run keeps the upload as it was.
func (s *StagedUpload) Ingest(ctx context.Context) imaging.Result {
	m := s.media
	compressed := path.Join(uploadDir, "compressed-"+path.Base(s.key))

	res := m.pipeline.Process(ctx, s.key, compressed)
	s.result = &res

	if !res.Success {
		m.logger.Warn("image compression failed, using original", "key", s.key, "err", res.Err)
		return res
	}

	final := path.Join(uploadDir, s.id+res.Format.Extension())
	if err := m.fs.Rename(compressed, final); err != nil {
		m.logger.Warn("could not promote compressed image, using original", "key", s.key, "err", err)
		m.remove(compressed)
		res.Success = false
		res.Err = err
		s.result = &res
		return res
	}

	if final != s.key {
		m.remove(s.key)
	}
	s.key = final
	res.Path = final

	m.logger.Info("image compressed",
		"key", s.key,
		"size", res.Size,
		"original_size", res.OriginalSize,
		"stage", res.Stage,
	)
	return res
}

// Key is the storage key of the file the post will reference.
func (s *StagedUpload) Key() string { return s.key }

func (s *StagedUpload) URL() string { return s.media.URL(s.key) }

// Result is the last Ingest outcome, nil before Ingest ran.
func (s *StagedUpload) Result() *imaging.Result { return s.result }

// Commit hands the file over to the post that now references it.
func (s *StagedUpload) Commit(ctx context.Context) {
	if s == nil || s.committed {
		return
	}
	s.committed = true
	s.media.mirrorJob(ctx, ReplicaSave, s.key)
}

// Discard removes the staged file and any leftover pipeline output. It is
// a no-op after Commit and safe on a nil receiver.
func (s *StagedUpload) Discard() {
	if s == nil || s.committed {
		return
	}
	s.media.remove(s.key)
	s.media.remove(path.Join(uploadDir, "compressed-"+path.Base(s.key)))
}

// URL maps a storage key to the path it is served under.
func (m *MediaStore) URL(key string) string {
	return m.urlPrefix + "/" + key
}

// Remove deletes the file behind an image URL this store handed out.
// URLs outside the upload directory are ignored.
func (m *MediaStore) Remove(ctx context.Context, imageURL string) {
	key, ok := m.keyFor(imageURL)
	if !ok {
		m.logger.Warn("refusing to remove foreign image", "url", imageURL)
		return
	}

	m.remove(key)
	m.mirrorJob(ctx, ReplicaDelete, key)
}

func (m *MediaStore) keyFor(imageURL string) (string, bool) {
	rest, ok := strings.CutPrefix(imageURL, m.urlPrefix+"/")
	if !ok {
		return "", false
	}

	key := path.Clean(rest)
	if path.Dir(key) != uploadDir {
		return "", false
	}
	return key, true
}

func (m *MediaStore) remove(key string) {
	if err := m.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Error("could not remove upload", "key", key, "err", err)
	}
}

func (m *MediaStore) mirrorJob(ctx context.Context, op ReplicaOp, key string) {
	if m.mirror == nil {
		return
	}

	job := ReplicationJob{Op: op, Key: key, ParentSpan: trace.SpanContextFromContext(ctx)}
	if err := m.mirror.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		m.logger.Warn("could not queue replication", "op", op, "key", key, "err", err)
	}
}
