// Package app builds and owns every gozcu component for one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/api"
	"github.com/tuncerburak97/gozcu/internal/capture"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/dump"
	"github.com/tuncerburak97/gozcu/internal/hook"
	"github.com/tuncerburak97/gozcu/internal/match"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/ratelimit"
	"github.com/tuncerburak97/gozcu/internal/repository"
	"github.com/tuncerburak97/gozcu/internal/service"
	"github.com/tuncerburak97/gozcu/internal/transform"
	"github.com/tuncerburak97/gozcu/internal/transport"
)

const (
	MetricsNamespace = "gozcu"
	AppName          = "gozcu"
)

type App struct {
	cfg      *config.Config
	settings config.SettingsGateway
	repo     repository.RecordRepository
	metrics  *metrics.MetricsCollector
	engine   *match.Engine
	writer   *service.RecordService
	throttle *ratelimit.Service
	apiLimit *ratelimit.Service
	hook     *hook.Hook
}

type Option func(*App)

// WithRepository uses repo instead of opening cfg.DB. The app takes ownership of it.
func WithRepository(repo repository.RecordRepository) Option {
	return func(a *App) { a.repo = repo }
}

func WithSettings(s config.SettingsGateway) Option {
	return func(a *App) { a.settings = s }
}

func WithMetrics(m *metrics.MetricsCollector) Option {
	return func(a *App) { a.metrics = m }
}

// New builds every component once.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.settings == nil {
		a.settings = config.NewMemorySettings(cfg.Settings.URLs)
	}
	if a.metrics == nil {
		a.metrics = metrics.GetMetricsCollector(MetricsNamespace, AppName)
	}

	scrubber, err := transform.NewEngine(cfg.Transform)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scrubber: %w", err)
	}

	if a.repo == nil {
		a.repo, err = repository.Open(ctx, &cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize repository: %w", err)
		}
	}

	if cfg.Capture.Throttle.Enabled {
		a.throttle, err = newThrottle(cfg.Capture.Throttle)
		if err != nil {
			a.repo.Close()
			return nil, fmt.Errorf("failed to initialize capture throttle: %w", err)
		}
	}

	if rpm := cfg.Server.RequestsPerMinute; rpm > 0 {
		a.apiLimit = ratelimit.NewService(rpm, time.Minute, ratelimit.NewMemoryStore(5*time.Minute))
	}

	a.writer = service.NewRecordService(a.repo, service.Options{
		Async:          cfg.Capture.Async,
		Workers:        cfg.Capture.Workers,
		BufferSize:     cfg.Capture.BufferSize,
		PersistTimeout: cfg.Capture.PersistTimeout,
		Metrics:        a.metrics,
	})

	a.engine = match.NewEngine(a.settings.Load().URLs)
	a.settings.OnChange(func(s config.CaptureSettings) {
		a.engine.Reload(s.URLs)
	})

	hookOpts := []hook.Option{
		hook.WithRecorder(capture.NewRecorder(capture.WithDumper(dump.ForFormat(cfg.Capture.DumpFormat)))),
		hook.WithMetrics(a.metrics),
	}
	if a.throttle != nil {
		hookOpts = append(hookOpts, hook.WithLimiter(a.throttle))
	}
	if scrubber.Len() > 0 {
		hookOpts = append(hookOpts, hook.WithScrubber(scrubber))
	}
	a.hook = hook.New(a.engine, a.writer, hookOpts...)

	log.Info().
		Str("db", cfg.DB.Type).
		Bool("async", cfg.Capture.Async).
		Bool("throttle", a.throttle != nil).
		Int("scrub_rules", scrubber.Len()).
		Strs("patterns", a.settings.Load().URLs).
		Msg("Capture pipeline ready")
	return a, nil
}

func newThrottle(cfg config.ThrottleConfig) (*ratelimit.Service, error) {
	var store ratelimit.Store
	switch cfg.Storage {
	case "", "memory":
		store = ratelimit.NewMemoryStore(5 * time.Minute)
	case "redis":
		s, err := ratelimit.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported throttle storage: %s", cfg.Storage)
	}
	return ratelimit.NewService(cfg.Requests, cfg.Window, store), nil
}

func (a *App) Hook() *hook.Hook {
	return a.hook
}

func (a *App) Repository() repository.RecordRepository {
	return a.repo
}

func (a *App) Settings() config.SettingsGateway {
	return a.settings
}

func (a *App) Metrics() *metrics.MetricsCollector {
	return a.metrics
}

// Transport wraps base so every call it completes is offered to the hook.
func (a *App) Transport(base http.RoundTripper) *transport.RoundTripper {
	rt := transport.New(base,
		transport.WithMaxBodyBytes(a.cfg.Capture.MaxBodyBytes),
		transport.WithRedactHeaders(a.cfg.Capture.RedactHeaders),
	)
	rt.Observe(a.hook.OnCallCompleted)
	return rt
}

// Client returns an http.Client whose calls are captured.
func (a *App) Client(base http.RoundTripper) *http.Client {
	return a.Transport(base).Client()
}

// ApplySettings sanitizes and stores raw as the active pattern list.
func (a *App) ApplySettings(raw any) (config.CaptureSettings, error) {
	return a.settings.Save(raw)
}

// Flush waits until every accepted record has reached the store.
func (a *App) Flush(ctx context.Context) error {
	return a.writer.Flush(ctx)
}

// Purge flushes pending records and removes every stored record.
func (a *App) Purge(ctx context.Context) error {
	if err := a.writer.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("Purging with records still queued")
	}
	return a.repo.PurgeAll(ctx)
}

// Deactivate is the teardown hook: it returns once the store is empty.
func (a *App) Deactivate(ctx context.Context) error {
	if err := a.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge log store: %w", err)
	}
	a.metrics.IncPurges()
	log.Info().Msg("Log store purged on deactivation")
	return nil
}

// API returns the admin fiber app.
func (a *App) API() *fiber.App {
	handler := api.NewHandler(a.repo, a.settings, a.metrics, a.Purge)
	return api.NewApp(a.cfg.Server, handler, a.apiLimit)
}

// Close drains the writer and releases the throttle and the store.
func (a *App) Close() error {
	a.writer.Shutdown()

	var errs []error
	for _, limiter := range []*ratelimit.Service{a.throttle, a.apiLimit} {
		if limiter == nil {
			continue
		}
		if err := limiter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rate limiter: %w", err))
		}
	}
	if err := a.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close repository: %w", err))
	}
	return errors.Join(errs...)
}
