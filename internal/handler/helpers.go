package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func timeQueryPtr(c *gin.Context, key string) *time.Time {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return &t
		}
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
