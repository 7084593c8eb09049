package imaging

import (
	"blogpress/internal/telemetry"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Tuning defaults for the ingestion pipeline.
const (
	DefaultCeiling             int64 = 1 << 20 // 1 MiB
	DefaultMaxDimension              = 1920
	DefaultEscalationDimension       = 1600
	DefaultInitialQuality            = 85
	DefaultNormalizeQuality          = 85
	DefaultQualityStep               = 10
	DefaultQualityFloor              = 50
	DefaultMaxAttempts               = 5
	DefaultEscalationQuality         = 75
	DefaultLastResortQuality         = 70
	DefaultTolerance                 = 1.2
)

const (
	WarningQualityReduced    = "Image compressed to meet size limit. Quality may be reduced."
	WarningHeavilyCompressed = "Image heavily compressed to meet 1MB limit."
)

type Options struct {
	Ceiling             int64
	MaxDimension        int
	EscalationDimension int
	InitialQuality      int
	NormalizeQuality    int
	QualityStep         int
	QualityFloor        int
	MaxAttempts         int
	EscalationQuality   int
	LastResortQuality   int
	Tolerance           float64 // escalation output is accepted up to Ceiling*Tolerance
}

func DefaultOptions() Options {
	return Options{
		Ceiling:             DefaultCeiling,
		MaxDimension:        DefaultMaxDimension,
		EscalationDimension: DefaultEscalationDimension,
		InitialQuality:      DefaultInitialQuality,
		NormalizeQuality:    DefaultNormalizeQuality,
		QualityStep:         DefaultQualityStep,
		QualityFloor:        DefaultQualityFloor,
		MaxAttempts:         DefaultMaxAttempts,
		EscalationQuality:   DefaultEscalationQuality,
		LastResortQuality:   DefaultLastResortQuality,
		Tolerance:           DefaultTolerance,
	}
}

type Option func(*Pipeline)

// WithOptions replaces every tuning value at once. Zero fields keep their default.
func WithOptions(o Options) Option {
	return func(p *Pipeline) {
		d := DefaultOptions()
		p.opts = Options{
			Ceiling:             or(o.Ceiling, d.Ceiling),
			MaxDimension:        or(o.MaxDimension, d.MaxDimension),
			EscalationDimension: or(o.EscalationDimension, d.EscalationDimension),
			InitialQuality:      or(o.InitialQuality, d.InitialQuality),
			NormalizeQuality:    or(o.NormalizeQuality, d.NormalizeQuality),
			QualityStep:         or(o.QualityStep, d.QualityStep),
			QualityFloor:        or(o.QualityFloor, d.QualityFloor),
			MaxAttempts:         or(o.MaxAttempts, d.MaxAttempts),
			EscalationQuality:   or(o.EscalationQuality, d.EscalationQuality),
			LastResortQuality:   or(o.LastResortQuality, d.LastResortQuality),
			Tolerance:           or(o.Tolerance, d.Tolerance),
		}
	}
}

func or[T int | int64 | float64](v, fallback T) T {
	if v == 0 {
		return fallback
	}
	return v
}

func WithCeiling(n int64) Option {
	return func(p *Pipeline) { p.opts.Ceiling = n }
}

func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) { p.opts.MaxAttempts = n }
}

func WithTolerance(f float64) Option {
	return func(p *Pipeline) { p.opts.Tolerance = f }
}

func WithCodec(c Codec) Option {
	return func(p *Pipeline) { p.codec = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer replaces the global tracer. A nil tracer is ignored.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}
