package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mgmonitor/internal/ledger"
	"mgmonitor/internal/repository"
)

type MonitorHandler struct {
	Repo   repository.Store
	Ledger *ledger.Ledger
}

func (h *MonitorHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/monitor")
	group.GET("/status", h.status)
	group.GET("/runs", h.listRuns)
	group.POST("/scan", h.triggerScan)
}

// @Summary Monitor status
// @Description Latest scan run plus current listing and deal counts.
// @Tags monitor
// @Success 200 {object} apiResponse
// @Router /api/v1/monitor/status [get]
func (h *MonitorHandler) status(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()

	run, err := h.Repo.LatestScanRun(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	activeListings, err := h.Repo.CountListings(ctx, repository.ListListingsParams{Active: boolPtr(true)})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	unnotified, err := h.Repo.CountDeals(ctx, repository.ListDealsParams{Notified: boolPtr(false)})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	modules, err := h.Repo.CountModules(ctx, repository.ListModulesParams{})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	Ok(c, gin.H{
		"last_run":         run,
		"active_listings":  activeListings,
		"unnotified_deals": unnotified,
		"modules":          modules,
	}, nil)
}

// @Summary Scan run history
// @Tags monitor
// @Param limit query int false "Max rows" default(50)
// @Success 200 {object} apiResponse
// @Router /api/v1/monitor/runs [get]
func (h *MonitorHandler) listRuns(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	items, err := h.Repo.ListScanRuns(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Trigger a scan cycle
// @Description Runs one scan synchronously. Returns 409 when a cycle is already running.
// @Tags monitor
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/monitor/scan [post]
func (h *MonitorHandler) triggerScan(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "scanner unavailable", nil)
		return
	}
	summary, err := h.Ledger.RunScanCycle(c.Request.Context())
	if errors.Is(err, ledger.ErrScanInProgress) {
		Error(c, http.StatusConflict, "scan already in progress", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}
