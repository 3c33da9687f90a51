package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/content-calendar/app/batch"
	"github.com/lysyi3m/content-calendar/app/errs"
)

func (h *Handler) RunBulk(c *gin.Context) {
	var req bulkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.bulk.Run(c.Request.Context(), c.Param("id"), req.IDs, req.Operation)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StartBatch launches a plan-level batch job in the background.
func (h *Handler) StartBatch(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		h.writeError(c, errs.Validation("decode_request", "force must be a boolean"))
		return
	}

	ctx := c.Request.Context()
	spec, err := h.jobs.Build(ctx, c.Param("kind"), c.Param("id"), force)
	if err != nil {
		h.writeError(c, err)
		return
	}

	progress, err := h.pipeline.Start(ctx, spec)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, progress)
}

func (h *Handler) GetBatch(c *gin.Context) {
	c.JSON(http.StatusOK, batchStatus{
		Busy:     h.pipeline.Busy(),
		Progress: h.pipeline.Status(),
		Last:     h.pipeline.LastManifest(),
		Kinds:    batch.Kinds(),
	})
}

func (h *Handler) CancelBatch(c *gin.Context) {
	if !h.pipeline.Cancel() {
		h.writeError(c, errs.Precondition("cancel_batch", "no batch job is running"))
		return
	}
	c.JSON(http.StatusAccepted, h.pipeline.Status())
}

// StreamBatch sends progress as server-sent events until the active job ends
// or the client goes away. Without an active job it sends the last progress
// once.
func (h *Handler) StreamBatch(c *gin.Context) {
	updates, unsubscribe := h.pipeline.Subscribe()
	defer unsubscribe()

	if !h.pipeline.Busy() {
		c.SSEvent("progress", h.pipeline.Status())
		return
	}

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case progress := <-updates:
			c.SSEvent("progress", progress)
			return progress.Running
		case <-ctx.Done():
			return false
		}
	})
}
