package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/repository"
	"mgmonitor/internal/stats"
)

type ModuleHandler struct {
	Repo repository.Store
}

func (h *ModuleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/modules")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/stats", h.priceStats)
	group.GET("/:id/listings", h.listings)
}

// @Summary Search known modules
// @Tags modules
// @Param q query string false "Name substring"
// @Param manufacturer query string false "Manufacturer filter"
// @Param limit query int false "Max rows" default(100)
// @Param offset query int false "Offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/modules [get]
func (h *ModuleHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListModulesParams{
		Limit:        intQuery(c, "limit", 100),
		Offset:       intQuery(c, "offset", 0),
		Query:        strQueryPtr(c, "q"),
		Manufacturer: strQueryPtr(c, "manufacturer"),
		OrderBy:      "name",
		Asc:          boolPtr(true),
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListModules(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountModules(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Module detail
// @Tags modules
// @Param id path string true "Module ID"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/modules/{id} [get]
func (h *ModuleHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	item, err := h.Repo.GetModule(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "module not found", nil)
		return
	}
	Ok(c, item, nil)
}

type priceStatsResponse struct {
	Overall     stats.Stats                      `json:"overall"`
	ByCondition map[condition.Bucket]stats.Stats `json:"by_condition,omitempty"`
}

// @Summary Sale price statistics for a module
// @Description Historical averages per condition bucket; buckets with no sales are omitted.
// @Tags modules
// @Param id path string true "Module ID"
// @Success 200 {object} apiResponse
// @Router /api/v1/modules/{id}/stats [get]
func (h *ModuleHandler) priceStats(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	records, err := h.Repo.ListSaleRecords(c.Request.Context(), id, "")
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	resp := priceStatsResponse{Overall: stats.Compute(records)}
	for _, bucket := range []condition.Bucket{
		condition.New, condition.Mint, condition.Excellent,
		condition.Good, condition.Fair, condition.Poor,
	} {
		s := stats.ComputeFiltered(records, bucket)
		if s.Insufficient() {
			continue
		}
		if resp.ByCondition == nil {
			resp.ByCondition = map[condition.Bucket]stats.Stats{}
		}
		resp.ByCondition[bucket] = s
	}
	Ok(c, resp, map[string]any{"sample_size": resp.Overall.SampleSize})
}

// @Summary Listings for a module
// @Tags modules
// @Param id path string true "Module ID"
// @Param active query bool false "Filter by active flag"
// @Param region query string false "Region filter"
// @Success 200 {object} apiResponse
// @Router /api/v1/modules/{id}/listings [get]
func (h *ModuleHandler) listings(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	params := repository.ListListingsParams{
		Limit:    intQuery(c, "limit", 100),
		Offset:   intQuery(c, "offset", 0),
		ModuleID: &id,
		Active:   boolQueryPtr(c, "active"),
		Region:   strQueryPtr(c, "region"),
		OrderBy:  "last_seen_at",
		Asc:      boolPtr(false),
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListListings(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountListings(ctx, params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}
