package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
)

func (h *Handler) ListItems(c *gin.Context) {
	filter := calendar.ItemFilter{
		Channel: c.Query("channel"),
		Status:  database.ItemStatus(c.Query("status")),
		Query:   c.Query("q"),
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		h.writeError(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		h.writeError(c, err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		h.writeError(c, err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		h.writeError(c, err)
		return
	}

	page, err := h.items.List(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreateItem(c *gin.Context) {
	var input calendar.ItemInput
	if !h.bindJSON(c, &input) {
		return
	}

	item, err := h.items.Create(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	var patch calendar.ItemPatch
	if !h.bindJSON(c, &patch) {
		return
	}

	item, err := h.items.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem is idempotent; the response says whether a row was removed.
func (h *Handler) DeleteItem(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.items.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.generation.Discard(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": deleted})
}

func (h *Handler) PublishItem(c *gin.Context) {
	var input calendar.PublishInput
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &input) {
		return
	}

	item, err := h.items.Publish(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) GenerateItem(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	preview, err := h.generation.Generate(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) GetPreview(c *gin.Context) {
	preview, err := h.generation.Preview(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) DiscardPreview(c *gin.Context) {
	h.generation.Discard(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// ApplyItem stores the given content, or the outstanding preview when the
// body carries none.
func (h *Handler) ApplyItem(c *gin.Context) {
	var req applyRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	item, err := h.generation.Apply(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
