package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mgmonitor/internal/repository"
)

type DealHandler struct {
	Repo repository.Store
}

func (h *DealHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/deals")
	group.GET("", h.list)
	group.POST("/:id/ack", h.acknowledge)
}

// @Summary List detected deals
// @Tags deals
// @Param module_id query string false "Filter by module"
// @Param listing_id query string false "Filter by listing"
// @Param notified query bool false "Filter by notified flag"
// @Param since query string false "RFC3339 lower bound on detection time"
// @Param limit query int false "Max rows" default(100)
// @Param offset query int false "Offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/deals [get]
func (h *DealHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListDealsParams{
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
		ModuleID:  strQueryPtr(c, "module_id"),
		ListingID: strQueryPtr(c, "listing_id"),
		Notified:  boolQueryPtr(c, "notified"),
		Since:     timeQueryPtr(c, "since"),
		OrderBy:   "detected_at",
		Asc:       boolPtr(false),
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListDeals(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDeals(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Acknowledge a deal
// @Description Marks the deal notified so it is never delivered again.
// @Tags deals
// @Param id path int true "Deal ID"
// @Success 200 {object} apiResponse
// @Router /api/v1/deals/{id}/ack [post]
func (h *DealHandler) acknowledge(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid deal id", nil)
		return
	}
	if err := h.Repo.MarkDealNotified(c.Request.Context(), id, time.Now()); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"acknowledged": id}, nil)
}
