package content

import (
	"blogpress/internal/storage"
	"blogpress/internal/telemetry"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var ErrReplicaQueueFull = errors.New("replication queue full")

const shardQueueSize = 64

type ReplicaOp string

const (
	ReplicaSave   ReplicaOp = "save"
	ReplicaDelete ReplicaOp = "delete"
)

type ReplicationJob struct {
	Op         ReplicaOp
	Key        string
	ParentSpan trace.SpanContext
}

// Replicator mirrors promoted uploads from the local store to a replica
// (S3) in the background. Requests never wait on the replica. Jobs are
// sharded by key, so a save and a later delete of one upload run in order
// on the same worker.
type Replicator struct {
	shards   []chan ReplicationJob
	wg       sync.WaitGroup
	done     chan struct{}
	logger   *slog.Logger
	inFlight sync.Map
	source   storage.Provider
	replica  storage.Provider
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

func NewReplicator(ctx context.Context, source, replica storage.Provider, workers int, logger *slog.Logger, metrics *telemetry.Metrics) *Replicator {
	workers = max(workers, 1)
	r := &Replicator{
		shards:  make([]chan ReplicationJob, workers),
		done:    make(chan struct{}),
		logger:  logger,
		source:  source,
		replica: replica,
		tracer:  otel.Tracer("blogpress/content/replicator"),
		metrics: metrics,
	}

	for i := range workers {
		r.shards[i] = make(chan ReplicationJob, shardQueueSize)
		r.wg.Go(func() {
			r.worker(ctx, i, r.shards[i])
		})
	}

	go func() {
		<-ctx.Done()
		r.logger.Info("replicator received shutdown signal")
		r.wg.Wait()
		close(r.done)
		r.logger.Info("replicator shutdown complete")
	}()

	return r
}

// Done is closed once every worker has exited after ctx was cancelled.
func (r *Replicator) Done() <-chan struct{} {
	return r.done
}

func (r *Replicator) worker(ctx context.Context, id int, jobs <-chan ReplicationJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			r.run(ctx, id, job)
			r.inFlight.Delete(jobKey(job))
		}
	}
}

func (r *Replicator) run(ctx context.Context, id int, job ReplicationJob) {
	ctx, span := r.tracer.Start(ctx, "Replicate",
		trace.WithAttributes(
			attribute.String("replica.op", string(job.Op)),
			attribute.String("replica.key", job.Key),
		),
		trace.WithLinks(trace.Link{SpanContext: job.ParentSpan}),
	)
	defer span.End()

	r.logger.Debug("worker replicating upload", "worker_id", id, "op", job.Op, "key", job.Key)

	var err error
	switch job.Op {
	case ReplicaSave:
		err = r.save(ctx, job.Key)
	case ReplicaDelete:
		err = r.replica.Delete(ctx, job.Key)
	default:
		err = fmt.Errorf("unknown replica op %q", job.Op)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "replication failed")
		r.logger.Error("replication failed", "op", job.Op, "key", job.Key, "err", err)
	}

	if r.metrics != nil {
		r.metrics.ImageReplicationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", string(job.Op)),
			attribute.String("outcome", outcome),
		))
	}
}

func (r *Replicator) save(ctx context.Context, key string) error {
	// an earlier save of the same key already made it
	if r.replica.Exists(ctx, key) {
		return nil
	}

	rc, err := r.source.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open local copy: %w", err)
	}
	defer rc.Close()

	body, ok := rc.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read local copy: %w", err)
		}
		body = bytes.NewReader(data)
	}

	return r.replica.Save(ctx, key, body)
}

// Enqueue schedules job. A job already queued for the same key and op is
// dropped; a full queue is reported rather than blocking the request.
func (r *Replicator) Enqueue(ctx context.Context, job ReplicationJob) error {
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
	default:
		r.inFlight.Delete(key)
		return ErrReplicaQueueFull
	}
}

func (r *Replicator) shard(key string) chan<- ReplicationJob {
	return r.shards[xxhash.Sum64String(key)%uint64(len(r.shards))]
}

func jobKey(job ReplicationJob) string {
	return string(job.Op) + ":" + job.Key
}
