package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all the metric instruments for blogpress
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
	// image ingestion
	ImageProcessedTotal      metric.Int64Counter
	ImageProcessingDuration  metric.Float64Histogram
	ImageCompressionAttempts metric.Int64Histogram
	ImageCompressionRatio    metric.Float64Histogram
	ImageReplicationsTotal   metric.Int64Counter
	// content
	PostWritesTotal    metric.Int64Counter
	SlugCollisionTotal metric.Int64Counter
	CacheHitsTotal     metric.Int64Counter
	CacheMissesTotal   metric.Int64Counter
	// limiter
	RateLimitHitsTotal metric.Int64Counter
	// middlewares
	AuthWorkDuration metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests: %w", err)
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request latency in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration: %w", err)
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	imageProcessedTotal, err := meter.Int64Counter(
		"image_processed",
		metric.WithDescription("Uploads run through the ingestion pipeline, by stage"),
		metric.WithUnit("{image}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image_processed: %w", err)
	}

	imageProcessingDuration, err := meter.Float64Histogram(
		"image_processing_duration",
		metric.WithDescription("Wall time spent in the ingestion pipeline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image_processing_duration: %w", err)
	}

	imageCompressionAttempts, err := meter.Int64Histogram(
		"image_compression_attempts",
		metric.WithDescription("Encode passes needed per upload"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image_compression_attempts: %w", err)
	}

	imageCompressionRatio, err := meter.Float64Histogram(
		"image_compression_ratio",
		metric.WithDescription("1 - compressed/original for oversized uploads"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image_compression_ratio: %w", err)
	}

	imageReplicationsTotal, err := meter.Int64Counter(
		"image_replications",
		metric.WithDescription("Replica uploads and deletes, by op and outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image_replications: %w", err)
	}

	postWritesTotal, err := meter.Int64Counter(
		"post_writes",
		metric.WithDescription("Post create, update and delete operations"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create post_writes: %w", err)
	}

	slugCollisionTotal, err := meter.Int64Counter(
		"slug_collisions",
		metric.WithDescription("Slug candidates rejected because they were taken"),
		metric.WithUnit("{slug}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create slug_collisions: %w", err)
	}

	cacheHitsTotal, err := meter.Int64Counter(
		"cache_hits",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits: %w", err)
	}

	cacheMissesTotal, err := meter.Int64Counter(
		"cache_misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses: %w", err)
	}

	rateLimitHitsTotal, err := meter.Int64Counter(
		"rate_limit_hits",
		metric.WithDescription("Number of rate limiter blocked requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_hits: %w", err)
	}

	authWorkDuration, err := meter.Float64Histogram(
		"auth_work_duration",
		metric.WithDescription("real time spent on DB/Bcrypt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_work_duration: %w", err)
	}

	return &Metrics{
		HTTPRequestsTotal:        httpRequestsTotal,
		HTTPRequestDuration:      httpRequestDuration,
		HTTPActiveRequests:       httpActiveRequests,
		ImageProcessedTotal:      imageProcessedTotal,
		ImageProcessingDuration:  imageProcessingDuration,
		ImageCompressionAttempts: imageCompressionAttempts,
		ImageCompressionRatio:    imageCompressionRatio,
		ImageReplicationsTotal:   imageReplicationsTotal,
		PostWritesTotal:          postWritesTotal,
		SlugCollisionTotal:       slugCollisionTotal,
		CacheHitsTotal:           cacheHitsTotal,
		CacheMissesTotal:         cacheMissesTotal,
		RateLimitHitsTotal:       rateLimitHitsTotal,
		AuthWorkDuration:         authWorkDuration,
	}, nil
}
