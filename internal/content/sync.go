package content

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// Backfill walks the local upload directory and queues every image the
// replica is missing, waiting for queue space. It fills a bucket after
// replication is switched on for an existing install.
func (r *Replicator) Backfill(ctx context.Context, local fs.FS) (int, error) {
	r.logger.Info("starting replica backfill", "dir", uploadDir)

	queued := 0
	err := fs.WalkDir(local, uploadDir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		base := path.Base(name)
		if strings.HasPrefix(base, "compressed-") || !slices.Contains(allowedExtensions, strings.ToLower(path.Ext(base))) {
			return nil
		}

		if r.replica.Exists(ctx, name) {
			return nil
		}

		r.logger.Info("queueing missing upload for replica", "key", name)
		if err := r.submit(ctx, ReplicationJob{Op: ReplicaSave, Key: name}); err != nil {
			return err
		}
		queued++

		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return queued, nil
	}

	return queued, err
}

// submit is Enqueue without the full-queue shortcut.
func (r *Replicator) submit(ctx context.Context, job ReplicationJob) error {
	key := jobKey(job)

	if _, loaded := r.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil
	}

	select {
	case <-ctx.Done():
		r.inFlight.Delete(key)
		return ctx.Err()
	case r.shard(job.Key) <- job:
		return nil
	}
}

// Wait blocks until every queued job has finished or ctx is done.
func (r *Replicator) Wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		pending := false
		r.inFlight.Range(func(any, any) bool {
			pending = true
			return false
		})
		if !pending {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// UploadUsage summarises the upload directory.
type UploadUsage struct {
	Files     int   `json:"files"`
	Bytes     int64 `json:"bytes"`
	Leftovers int   `json:"leftovers"` // pipeline output never promoted
}

// MeasureUploads walks the upload directory of fsys. A missing directory
// counts as empty.
func MeasureUploads(fsys fs.FS) (UploadUsage, error) {
	var u UploadUsage
	err := fs.WalkDir(fsys, uploadDir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(path.Base(name), "compressed-") {
			u.Leftovers++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		u.Files++
		u.Bytes += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return UploadUsage{}, nil
	}
	return u, err
}
