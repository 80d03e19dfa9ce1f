// Package api serves the admin surface: browsing and deleting captured
// records and editing the capture settings.
package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/ratelimit"
	"github.com/tuncerburak97/gozcu/internal/repository"
)

// Purger empties the log store. It is expected to flush pending writes first.
type Purger func(ctx context.Context) error

type Handler struct {
	repo     repository.RecordRepository
	settings config.SettingsGateway
	metrics  *metrics.MetricsCollector
	purge    Purger
}

type ListResponse struct {
	Items  []model.Summary `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type SettingsResponse struct {
	URLs []string `json:"urls"`
	Text string   `json:"text"`
}

type settingsRequest struct {
	URLs any `json:"urls"`
}

func NewHandler(repo repository.RecordRepository, settings config.SettingsGateway, m *metrics.MetricsCollector, purge Purger) *Handler {
	if purge == nil {
		purge = repo.PurgeAll
	}
	return &Handler{repo: repo, settings: settings, metrics: m, purge: purge}
}

// NewApp builds the fiber app with every admin route. limiter may be nil.
func NewApp(cfg config.ServerConfig, h *Handler, limiter *ratelimit.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Get("/health", h.Health)
	if h.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.metrics.Handler()))
		app.Get("/metrics/json", h.MetricsJSON)
	}

	api := app.Group("/api")
	if limiter != nil {
		api.Use(ratelimit.Middleware(limiter))
	}
	api.Get("/logs", h.ListLogs)
	api.Delete("/logs", h.PurgeLogs)
	api.Get("/logs/:id", h.GetLog)
	api.Delete("/logs/:id", h.DeleteLog)
	api.Get("/settings", h.GetSettings)
	api.Put("/settings", h.PutSettings)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	count, err := h.repo.Count(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "records": count})
}

func (h *Handler) MetricsJSON(c *fiber.Ctx) error {
	body, err := h.metrics.GetMetricsJSON()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// ListLogs returns record summaries newest first.
// Query: limit, offset, status=success|failure.
func (h *Handler) ListLogs(c *fiber.Ctx) error {
	filter := model.Filter{
		Limit:  c.QueryInt("limit", model.DefaultListLimit),
		Offset: c.QueryInt("offset", 0),
	}
	switch c.Query("status") {
	case "":
	case "success":
		ok := true
		filter.Status = &ok
	case "failure":
		ok := false
		filter.Status = &ok
	default:
		return fiber.NewError(fiber.StatusBadRequest, "status must be success or failure")
	}

	ctx := c.UserContext()
	items, err := h.repo.List(ctx, filter)
	if err != nil {
		return err
	}
	total, err := h.repo.Count(ctx)
	if err != nil {
		return err
	}
	return c.JSON(ListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.PageLimit(),
		Offset: filter.PageOffset(),
	})
}

func (h *Handler) GetLog(c *fiber.Ctx) error {
	rec, err := h.repo.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *Handler) DeleteLog(c *fiber.Ctx) error {
	err := h.repo.Delete(c.UserContext(), c.Params("id"))
	if errors.Is(err, model.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PurgeLogs removes every record.
func (h *Handler) PurgeLogs(c *fiber.Ctx) error {
	if err := h.purge(c.UserContext()); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.IncPurges()
	}
	log.Info().Str("ip", c.IP()).Msg("Log store purged")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(settingsResponse(h.settings.Load()))
}

// PutSettings accepts urls as a newline separated string or a list of strings.
func (h *Handler) PutSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
	}
	switch req.URLs.(type) {
	case string, []any:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "urls must be a string or a list")
	}

	saved, err := h.settings.Save(req.URLs)
	if err != nil {
		return err
	}
	log.Info().Strs("urls", saved.URLs).Msg("Capture settings updated")
	return c.JSON(settingsResponse(saved))
}

func settingsResponse(s config.CaptureSettings) SettingsResponse {
	urls := s.URLs
	if urls == nil {
		urls = []string{}
	}
	return SettingsResponse{URLs: urls, Text: s.Text()}
}
