package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/sources"
)

func (h *Handler) ListPlans(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.writeError(c, err)
		return
	}

	page, err := h.plans.List(c.Request.Context(), calendar.PlanFilter{
		Status: database.PlanStatus(c.Query("status")),
		Query:  c.Query("q"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var input calendar.PlanInput
	if !h.bindJSON(c, &input) {
		return
	}

	plan, err := h.plans.Create(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) GetPlan(c *gin.Context) {
	plan, err := h.plans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) UpdatePlan(c *gin.Context) {
	var patch calendar.PlanPatch
	if !h.bindJSON(c, &patch) {
		return
	}

	plan, err := h.plans.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) DeletePlan(c *gin.Context) {
	if err := h.plans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PopulatePlan(c *gin.Context) {
	result, err := h.items.Populate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ImportFeed(c *gin.Context) {
	var req sources.ImportRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.importer.Import(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
