package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mgmonitor/internal/ledger"
	"mgmonitor/internal/repository"
)

type PreferenceHandler struct {
	Repo repository.Store
}

func (h *PreferenceHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/preferences")
	group.GET("", h.list)
	group.PUT("/:name", h.set)
}

// @Summary List runtime preferences
// @Tags preferences
// @Success 200 {object} apiResponse
// @Router /api/v1/preferences [get]
func (h *PreferenceHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListPreferences(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type setPreferenceRequest struct {
	Value string `json:"value"`
}

// @Summary Set a runtime preference
// @Description Known policy preferences are validated before being stored so a bad value never reaches the scanner.
// @Tags preferences
// @Param name path string true "Preference name"
// @Param body body setPreferenceRequest true "Value"
// @Success 200 {object} apiResponse
// @Router /api/v1/preferences/{name} [put]
func (h *PreferenceHandler) set(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "preference name required", nil)
		return
	}
	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	value := strings.TrimSpace(req.Value)
	if err := validatePreference(name, value); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Repo.SetPreference(c.Request.Context(), name, value); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"name": name, "value": value}, nil)
}

func validatePreference(name, value string) error {
	switch name {
	case ledger.PrefThresholdPct, ledger.PrefRenotifyMargin:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &preferenceError{name: name, reason: "must be a number"}
		}
		if name == ledger.PrefThresholdPct && (v <= 0 || v >= 100) {
			return &preferenceError{name: name, reason: "must be between 0 and 100"}
		}
		if name == ledger.PrefRenotifyMargin && v < 0 {
			return &preferenceError{name: name, reason: "must not be negative"}
		}
	case ledger.PrefRegions:
		if value == "" {
			return &preferenceError{name: name, reason: "must list at least one region"}
		}
	}
	return nil
}

type preferenceError struct {
	name   string
	reason string
}

func (e *preferenceError) Error() string {
	return e.name + " " + e.reason
}
