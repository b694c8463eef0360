package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mgmonitor/internal/models"
	"mgmonitor/internal/repository"
)

type WatchlistHandler struct {
	Repo repository.Store
}

func (h *WatchlistHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/watchlist")
	group.GET("", h.list)
	group.PUT("/:module_id", h.upsert)
	group.DELETE("/:module_id", h.remove)
}

// @Summary List watched modules
// @Tags watchlist
// @Success 200 {object} apiResponse
// @Router /api/v1/watchlist [get]
func (h *WatchlistHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListWatchlist(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type upsertWatchlistRequest struct {
	ThresholdPct     *float64 `json:"threshold_pct"`
	MaxPrice         *string  `json:"max_price"`
	MaxPriceCurrency string   `json:"max_price_currency"`
	Notify           *bool    `json:"notify"`
}

// @Summary Watch a module
// @Description Adds or updates a per-module policy override.
// @Tags watchlist
// @Param module_id path string true "Module ID"
// @Param body body upsertWatchlistRequest true "Override"
// @Success 200 {object} apiResponse
// @Router /api/v1/watchlist/{module_id} [put]
func (h *WatchlistHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	moduleID := strings.TrimSpace(c.Param("module_id"))
	if moduleID == "" {
		Error(c, http.StatusBadRequest, "module id required", nil)
		return
	}
	var req upsertWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.ThresholdPct != nil && (*req.ThresholdPct <= 0 || *req.ThresholdPct >= 100) {
		Error(c, http.StatusBadRequest, "threshold_pct must be between 0 and 100", nil)
		return
	}

	item := &models.WatchlistEntry{
		ModuleID:     moduleID,
		ThresholdPct: req.ThresholdPct,
		Notify:       true,
	}
	if req.MaxPrice != nil {
		price, err := decimal.NewFromString(*req.MaxPrice)
		if err != nil || price.IsNegative() {
			Error(c, http.StatusBadRequest, "invalid max_price", nil)
			return
		}
		item.MaxPrice = &price
		item.MaxPriceCurrency = strings.ToUpper(strings.TrimSpace(req.MaxPriceCurrency))
	}
	if req.Notify != nil {
		item.Notify = *req.Notify
	}
	if err := h.Repo.UpsertWatchlistEntry(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Unwatch a module
// @Tags watchlist
// @Param module_id path string true "Module ID"
// @Success 200 {object} apiResponse
// @Router /api/v1/watchlist/{module_id} [delete]
func (h *WatchlistHandler) remove(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	moduleID := strings.TrimSpace(c.Param("module_id"))
	if moduleID == "" {
		Error(c, http.StatusBadRequest, "module id required", nil)
		return
	}
	if err := h.Repo.DeleteWatchlistEntry(c.Request.Context(), moduleID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": moduleID}, nil)
}
