// Package hook is the observer the HTTP client calls after every completed
// call. It filters, captures and persists, and never lets a failure escape.
package hook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/capture"
	"github.com/tuncerburak97/gozcu/internal/dump"
	"github.com/tuncerburak97/gozcu/internal/match"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/ratelimit"
)

// Persister accepts finished records.
type Persister interface {
	Persist(ctx context.Context, rec *model.Record) error
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

type Scrubber interface {
	Apply(rec *model.Record) error
}

type Hook struct {
	engine   *match.Engine
	recorder *capture.Recorder
	sink     Persister
	limiter  Limiter
	scrubber Scrubber
	metrics  *metrics.MetricsCollector
}

type Option func(*Hook)

func WithRecorder(r *capture.Recorder) Option {
	return func(h *Hook) { h.recorder = r }
}

// WithLimiter caps the records produced per target host.
func WithLimiter(l Limiter) Option {
	return func(h *Hook) { h.limiter = l }
}

func WithScrubber(s Scrubber) Option {
	return func(h *Hook) { h.scrubber = s }
}

func WithMetrics(m *metrics.MetricsCollector) Option {
	return func(h *Hook) { h.metrics = m }
}

func New(engine *match.Engine, sink Persister, opts ...Option) *Hook {
	h := &Hook{
		engine:   engine,
		recorder: capture.NewRecorder(),
		sink:     sink,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.GetMetricsCollector("gozcu", "gozcu")
	}
	return h
}

// OnCallCompleted observes one finished call. result is the response value or
// the error the call ended with. It always returns normally.
func (h *Hook) OnCallCompleted(ctx context.Context, result any, callContext, transportClass string, args map[string]any, target string) {
	if h == nil {
		return
	}
	start := time.Now()
	decision := metrics.DecisionError

	defer func() {
		if p := recover(); p != nil {
			decision = metrics.DecisionError
			log.Warn().
				Str("url", target).
				Str("panic", fmt.Sprint(p)).
				Msg("Call capture aborted")
		}
		h.metrics.ObserveCall(decision, time.Since(start))
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	logger := zerolog.Ctx(ctx).With().
		Str("url", target).
		Str("context", callContext).
		Str("transport", transportClass).
		Logger()

	if h.engine != nil && !h.engine.Match(target) {
		decision = metrics.DecisionSkipped
		logger.Debug().Msg("Call out of scope")
		return
	}

	if h.limiter != nil {
		res, err := h.limiter.Allow(ctx, throttleKey(target))
		if err != nil {
			logger.Warn().Err(err).Msg("Capture throttle unavailable")
		} else if res != nil && res.Limited {
			decision = metrics.DecisionThrottled
			logger.Debug().Dur("retry_after", res.RetryAfter).Msg("Call capture throttled")
			return
		}
	}

	rec := h.recorder.Build(result, args, target, dump.Callers(0))

	if h.scrubber != nil {
		if err := h.scrubber.Apply(rec); err != nil {
			logger.Warn().Err(err).Msg("Record scrubbing failed")
		}
	}

	if err := h.sink.Persist(ctx, rec); err != nil {
		decision = metrics.DecisionError
		logger.Warn().Err(err).Str("id", rec.ID).Msg("Record not persisted")
		return
	}

	decision = metrics.DecisionCaptured
	logger.Debug().
		Str("id", rec.ID).
		Bool("status", rec.Status).
		Msg("Call captured")
}

// throttleKey keys the capture throttle by target host.
func throttleKey(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "capture:" + target
	}
	return "capture:" + u.Host
}
