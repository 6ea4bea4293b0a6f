package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetLatestBeacon(c *gin.Context) {
	b, err := h.beacon.Latest(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBeaconInfo(c *gin.Context) {
	info, err := h.beacon.Info(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) GetRoundAtTime(c *gin.Context) {
	t, err := parseTime(c.Query("time"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	round, err := h.beacon.GetRoundAtTime(c.Request.Context(), t)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "time": t})
}

func (h *Handler) GetTimeOfRound(c *gin.Context) {
	round, err := strconv.ParseUint(c.Param("round"), 10, 64)
	if err != nil || round == 0 {
		abortWithError(c, badRequest("invalid round %q", c.Param("round")))
		return
	}
	t, err := h.beacon.GetTimeOfRound(c.Request.Context(), round)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "time": t})
}
