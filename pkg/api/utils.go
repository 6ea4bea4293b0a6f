package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func queryUint(c *gin.Context, name string, def uint64) (uint64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("failed to parse '%v' parameter in query", name)
	}
	return v, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("failed to parse '%v' parameter in query", name)
	}
	return v, nil
}

func (h *Handler) pagination(c *gin.Context) (offset, limit int, err error) {
	if offset, err = queryInt(c, "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(c, "limit", 0); err != nil {
		return 0, 0, err
	}
	return offset, h.limits.pageSize(limit), nil
}

// parseTime accepts RFC 3339 or unix seconds.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, badRequest("time %q is neither RFC 3339 nor unix seconds", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}
