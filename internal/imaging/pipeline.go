package imaging

import (
	"blogpress/internal/telemetry"
	"context"
	"errors"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// FileSystem is the storage the pipeline reads uploads from and writes
// results to. Names are relative to the filesystem root.
type FileSystem interface {
	Size(name string) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
	Rename(oldname, newname string) error
}

// Stage records which step of the pipeline produced the output.
type Stage string

const (
	StageNormalized Stage = "normalized"  // input under the ceiling, re-encoded smaller
	StageOriginal   Stage = "original"    // input under the ceiling, copied as is
	StageCompressed Stage = "compressed"  // quality loop met the ceiling
	StageEscalated  Stage = "escalated"   // smaller dimension, within tolerance
	StageLastResort Stage = "last_resort" // forced final encode
	StageFailed     Stage = "failed"
)

// Result is the outcome of Process. It is a value, not an error: callers
// check Success and fall back to the untouched upload when it is false.
type Result struct {
	Success          bool
	Path             string
	Size             int64
	OriginalSize     int64   // only set when the input exceeded the ceiling
	CompressionRatio float64 // 1 - Size/OriginalSize
	Format           Format
	Stage            Stage
	Warning          string
	Attempts         int
	Err              error
}

type Pipeline struct {
	fs      FileSystem
	codec   Codec
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
}

func NewPipeline(fsys FileSystem, opts ...Option) *Pipeline {
	p := &Pipeline{
		fs:     fsys,
		codec:  StdCodec{},
		opts:   DefaultOptions(),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("blogpress/imaging"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process bounds the image at inputPath to the configured ceiling and writes
// the result to outputPath. The input is never modified or removed. On
// failure any partial output is removed and Result.Err holds an
// *ImageProcessingError.
func (p *Pipeline) Process(ctx context.Context, inputPath, outputPath string) Result {
	ctx, span := p.tracer.Start(ctx, "imaging.Process",
		trace.WithAttributes(attribute.String("image.input", inputPath)),
	)
	defer span.End()

	start := time.Now()

	res, err := p.process(ctx, inputPath, outputPath)
	if err != nil {
		p.discard(outputPath)

		if !errors.Is(err, ErrImageProcessing) {
			err = opError("process", inputPath, err)
		}
		res = Result{
			Stage:        StageFailed,
			Attempts:     res.Attempts,
			OriginalSize: res.OriginalSize,
			Err:          err,
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "image processing failed")
		p.logger.Warn("image processing failed", "input", inputPath, "attempts", res.Attempts, "err", err)
	} else {
		p.logger.Debug("image processed",
			"input", inputPath,
			"stage", res.Stage,
			"size", res.Size,
			"original_size", res.OriginalSize,
			"attempts", res.Attempts,
		)
	}

	span.SetAttributes(
		attribute.String("image.stage", string(res.Stage)),
		attribute.Int("image.attempts", res.Attempts),
		attribute.Int64("image.size", res.Size),
		attribute.Float64("image.compression_ratio", res.CompressionRatio),
	)
	p.record(ctx, res, time.Since(start))

	return res
}

func (p *Pipeline) process(ctx context.Context, in, out string) (Result, error) {
	o := p.opts

	originalSize, err := p.fs.Size(in)
	if err != nil {
		return Result{}, opError("stat", in, err)
	}

	src, format, err := p.decode(ctx, in)
	if err != nil {
		return Result{}, err
	}
	frames := newFrames(src)

	if originalSize <= o.Ceiling {
		return p.normalize(ctx, frames.fit(o.MaxDimension), format, originalSize, in, out)
	}

	res := Result{OriginalSize: originalSize}
	quality := o.InitialQuality

	for res.Attempts < o.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return res, opError("compress", in, err)
		}

		res.Attempts++
		size, err := p.encode(frames.fit(o.MaxDimension), format, quality, out)
		if err != nil {
			return res, err
		}

		p.logger.Debug("compression attempt", "input", in, "attempt", res.Attempts, "quality", quality, "size", size)

		if size <= o.Ceiling {
			return res.accept(out, size, format, StageCompressed, ""), nil
		}

		// quality has no effect on lossless output, more attempts would be identical
		if !format.Lossy() {
			return p.escalate(ctx, frames, format, in, out, res)
		}

		quality -= o.QualityStep
		if quality < o.QualityFloor {
			return p.escalate(ctx, frames, format, in, out, res)
		}
	}

	return res, opError("compress", in, ErrCompressionExhausted)
}

// normalize handles inputs already within the ceiling. The re-encoded file
// is kept only when it is no larger than the original; otherwise the
// original bytes are copied through.
func (p *Pipeline) normalize(ctx context.Context, img image.Image, format Format, originalSize int64, in, out string) (Result, error) {
	res := Result{Attempts: 1}

	size, err := p.encode(img, format, p.opts.NormalizeQuality, out)
	if err != nil {
		return res, err
	}

	if size <= p.opts.Ceiling && size <= originalSize {
		res.Success, res.Path, res.Size, res.Format, res.Stage = true, out, size, format, StageNormalized
		return res, nil
	}

	p.logger.Debug("re-encode did not shrink image, keeping original", "input", in, "original_size", originalSize, "size", size)

	size, err = p.copyFile(ctx, in, out)
	if err != nil {
		return res, err
	}

	res.Success, res.Path, res.Size, res.Format, res.Stage = true, out, size, format, StageOriginal
	return res, nil
}

func (p *Pipeline) escalate(ctx context.Context, frames *frames, format Format, in, out string, res Result) (Result, error) {
	o := p.opts
	img := frames.fit(o.EscalationDimension)

	target := format
	if !format.Lossy() {
		target = FormatJPEG
	}

	if err := ctx.Err(); err != nil {
		return res, opError("compress", in, err)
	}

	res.Attempts++
	size, err := p.encode(img, target, o.EscalationQuality, out)
	if err != nil {
		return res, err
	}

	if float64(size) <= float64(o.Ceiling)*o.Tolerance {
		return res.accept(out, size, target, StageEscalated, WarningQualityReduced), nil
	}

	p.logger.Debug("escalation above tolerance, forcing last resort", "input", in, "size", size)

	res.Attempts++
	size, err = p.encode(img, target, o.LastResortQuality, out)
	if err != nil {
		return res, err
	}

	return res.accept(out, size, target, StageLastResort, WarningHeavilyCompressed), nil
}

func (r Result) accept(path string, size int64, format Format, stage Stage, warning string) Result {
	r.Success = true
	r.Path = path
	r.Size = size
	r.Format = format
	r.Stage = stage
	r.Warning = warning
	if r.OriginalSize > 0 {
		r.CompressionRatio = 1 - float64(size)/float64(r.OriginalSize)
	}
	return r
}

func (p *Pipeline) decode(ctx context.Context, path string) (image.Image, Format, error) {
	rc, err := p.fs.Open(ctx, path)
	if err != nil {
		return nil, "", opError("open", path, err)
	}
	defer rc.Close()

	img, format, err := p.codec.Decode(rc)
	if err != nil {
		return nil, "", opError("decode", path, err)
	}

	return img, format, nil
}

func (p *Pipeline) encode(img image.Image, format Format, quality int, out string) (int64, error) {
	w, err := p.fs.Create(out)
	if err != nil {
		return 0, opError("create", out, err)
	}

	if err := p.codec.Encode(w, img, format, quality); err != nil {
		w.Close()
		return 0, opError("encode", out, err)
	}

	if err := w.Close(); err != nil {
		return 0, opError("write", out, err)
	}

	size, err := p.fs.Size(out)
	if err != nil {
		return 0, opError("stat", out, err)
	}

	return size, nil
}

func (p *Pipeline) copyFile(ctx context.Context, in, out string) (int64, error) {
	src, err := p.fs.Open(ctx, in)
	if err != nil {
		return 0, opError("open", in, err)
	}
	defer src.Close()

	dst, err := p.fs.Create(out)
	if err != nil {
		return 0, opError("create", out, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return 0, opError("copy", out, err)
	}

	if err := dst.Close(); err != nil {
		return 0, opError("copy", out, err)
	}

	return n, nil
}

func (p *Pipeline) discard(path string) {
	if err := p.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Error("could not remove partial output", "path", path, "err", err)
	}
}

func (p *Pipeline) record(ctx context.Context, res Result, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}

	stage := metric.WithAttributes(attribute.String("stage", string(res.Stage)))
	p.metrics.ImageProcessedTotal.Add(ctx, 1, stage)
	p.metrics.ImageProcessingDuration.Record(ctx, elapsed.Seconds(), stage)
	p.metrics.ImageCompressionAttempts.Record(ctx, int64(res.Attempts), stage)
	if res.Success && res.OriginalSize > 0 {
		p.metrics.ImageCompressionRatio.Record(ctx, res.CompressionRatio)
	}
}

// frames caches resized copies of the decoded source per bounding dimension.
type frames struct {
	src   image.Image
	sized map[int]image.Image
}

func newFrames(src image.Image) *frames {
	return &frames{src: src, sized: make(map[int]image.Image, 2)}
}

func (f *frames) fit(maxDim int) image.Image {
	if img, ok := f.sized[maxDim]; ok {
		return img
	}

	img := resizeToFit(f.src, maxDim)
	f.sized[maxDim] = img
	return img
}
