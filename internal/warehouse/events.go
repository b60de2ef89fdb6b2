package warehouse

import (
	"context"
	"log/slog"
)

// Event is one structured diagnostic emitted by the engine, keyed by
// operation and material so downstream review can group findings.
type Event struct {
	Op         string
	PurchaseID string
	MaterialID string
	Material   string
	Message    string
	Warnings   []string
}

// EventSink receives engine diagnostics. Implementations must be safe for
// concurrent use and must never block the engine on slow consumers.
type EventSink interface {
	Info(ctx context.Context, evt Event)
	Warn(ctx context.Context, evt Event)
}

// SlogSink writes events through a slog.Logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger as an EventSink. A nil logger falls back to
// slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Info(ctx context.Context, evt Event) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, evt.Message, eventAttrs(evt)...)
}

func (s *SlogSink) Warn(ctx context.Context, evt Event) {
	s.logger.LogAttrs(ctx, slog.LevelWarn, evt.Message, eventAttrs(evt)...)
}

func eventAttrs(evt Event) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", evt.Op)}
	if evt.PurchaseID != "" {
		attrs = append(attrs, slog.String("purchase_id", evt.PurchaseID))
	}
	if evt.MaterialID != "" {
		attrs = append(attrs, slog.String("material_id", evt.MaterialID))
	}
	if evt.Material != "" {
		attrs = append(attrs, slog.String("material", evt.Material))
	}
	if len(evt.Warnings) > 0 {
		attrs = append(attrs, slog.Any("warnings", evt.Warnings))
	}
	return attrs
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Info(context.Context, Event) {}
func (NopSink) Warn(context.Context, Event) {}

// Metrics counts engine activity. The prometheus implementation lives in
// internal/observability; tests use the zero-value noopMetrics.
type Metrics interface {
	LineProcessed(op string, outcome SyncStatus)
	VersionConflict()
	DriftDetected(severity Severity)
}

type noopMetrics struct{}

func (noopMetrics) LineProcessed(string, SyncStatus) {}
func (noopMetrics) VersionConflict()                 {}
func (noopMetrics) DriftDetected(Severity)           {}
