package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// NewNopTelemetry returns telemetry that discards logs, records metrics into a
// private registry and delivers events synchronously. It is meant for tests
// and for library callers that do not configure telemetry.
func NewNopTelemetry() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Events.EnableAsync = false

	tracer, _ := NewTracer(cfg)
	metrics, _ := NewMetrics(cfg.Metrics)
	events, _ := NewEventPublisher(cfg.Events)

	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	return t.Metrics.Stop(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// runState is stored in the context by WithRunContext.
type runState struct {
	runID     string
	direction string
	span      trace.Span
	timer     *Timer
}

// runStateKey is the context key for run state.
type runStateKey struct{}

// WithRunContext creates a context enriched with run-specific telemetry.
func WithRunContext(ctx context.Context, runID, direction string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartRunSpan(ctx, runID, direction)

	logger := tel.Logger.WithRunID(runID).WithField("direction", direction)
	if traceID := TraceID(spanCtx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordRunStarted(direction)
	_ = tel.Events.PublishRunStarted(runID, direction)

	return context.WithValue(spanCtx, runStateKey{}, &runState{
		runID:     runID,
		direction: direction,
		span:      span,
		timer:     NewTimer(),
	})
}

// EndRunContext completes the run context, recording metrics and events.
func EndRunContext(ctx context.Context, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	state, ok := ctx.Value(runStateKey{}).(*runState)
	if !ok {
		return
	}

	state.span.SetAttributes(AttrRunStatus.String(status))
	if err != nil {
		RecordError(state.span, err)
	} else {
		RecordSuccess(state.span)
	}
	state.span.End()

	duration := state.timer.Duration()
	tel.Metrics.RecordRunCompleted(state.direction, status, duration)

	if err != nil {
		_ = tel.Events.PublishRunFailed(state.runID, err.Error())
	} else {
		_ = tel.Events.PublishRunCompleted(state.runID, status, duration)
	}
}

// entityTimerKey is the context key for entity timers.
type entityTimerKey struct{}

// entitySpanKey is the context key for entity spans.
type entitySpanKey struct{}

// WithEntityContext creates a context enriched with entity-specific telemetry
// for one phase (export, first_pass, second_pass).
func WithEntityContext(ctx context.Context, kind, alias, phase string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartEntitySpan(ctx, kind, alias, phase)

	logger := FromContext(ctx).WithEntity(kind, alias).WithField("phase", phase)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, entitySpanKey{}, span)
	return context.WithValue(spanCtx, entityTimerKey{}, NewTimer())
}

// EndEntityContext completes the entity context, recording its outcome.
func EndEntityContext(ctx context.Context, kind, phase, change string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(entitySpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrChange.String(change))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(entityTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}
	tel.Metrics.RecordItemDuration(kind, phase, duration)
}
