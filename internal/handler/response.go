package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiResponse is the envelope every endpoint replies with. Code 0 means
// success; otherwise it mirrors the HTTP status.
type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Ok writes a success envelope. meta is optional and carries pagination.
func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}
