package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/content-calendar/app/errs"
)

func NewHandler(deps Deps) *Handler {
	return &Handler{
		planRepo:     deps.PlanRepo,
		itemRepo:     deps.ItemRepo,
		plans:        deps.Plans,
		items:        deps.Items,
		presets:      deps.Presets,
		generation:   deps.Generation,
		bulk:         deps.Bulk,
		pipeline:     deps.Pipeline,
		jobs:         deps.Jobs,
		sync:         deps.Sync,
		encoder:      deps.Encoder,
		importer:     deps.Importer,
		syncDefaults: deps.SyncDefaults,
		version:      deps.Version,
		now:          time.Now,
	}
}

// statusFor maps an error kind onto the HTTP status returned to the caller.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrBusy), errors.Is(err, errs.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, errs.ErrPrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, errs.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	c.JSON(h.errorBody(c, err))
}

func (h *Handler) errorBody(c *gin.Context, err error) (int, gin.H) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		return status, gin.H{"error": "internal", "message": "Internal server error"}
	}

	slog.Debug("Request rejected", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	return status, gin.H{"error": errs.KindOf(err), "message": err.Error()}
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.writeError(c, errs.Validation("decode_request", "invalid request body: %v", err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Validation("decode_request", "%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errs.Validation("decode_request", "%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if planCount, err := h.planRepo.GetPlanCount(c.Request.Context()); err == nil {
		health["plans"] = planCount
	} else {
		health["status"] = "degraded"
		slog.Warn("Health check failed to count plans", "error", err)
	}

	if itemCount, err := h.itemRepo.GetItemCount(c.Request.Context()); err == nil {
		health["items"] = itemCount
	}

	health["presets"] = len(h.presets.GetPresets())
	health["batch_running"] = h.pipeline.Busy()
	health["calendar_sync"] = h.sync.Enabled()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListPresets(c *gin.Context) {
	presets := h.presets.GetPresets()
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"total":   len(presets),
	})
}

// GetCalendar serves a plan as an iCalendar feed.
func (h *Handler) GetCalendar(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	plan, err := h.plans.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items, err := h.items.All(ctx, plan.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	ics, err := h.encoder.Run(*plan, items, h.syncDefaults.Duration)
	if err != nil {
		slog.Error("Calendar encoding error", "plan_id", plan.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Header("X-Calendar-Items", strconv.Itoa(len(items)))
	c.Header("X-Last-Updated", plan.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, ics)
}

func (h *Handler) ListProviderCalendars(c *gin.Context) {
	calendars, err := h.sync.ListCalendars(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calendars": calendars, "total": len(calendars)})
}

func (h *Handler) SyncPlan(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	defaults := h.syncDefaults
	if req.CalendarURL != "" {
		defaults.CalendarURL = req.CalendarURL
	}
	if req.DurationMinutes > 0 {
		defaults.Duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	result, err := h.sync.Sync(c.Request.Context(), c.Param("id"), defaults)
	if err != nil {
		status, body := h.errorBody(c, err)
		if result != nil {
			body["result"] = result
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, result)
}
