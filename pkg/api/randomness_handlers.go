package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRandomness returns the beacon output of the "size" blocks ending at "block" (the head when omitted).
func (h *Handler) GetRandomness(c *gin.Context) {
	block, err := queryUint(c, "block", 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	size, err := queryInt(c, "size", defaultRandomness)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !h.limits.isRandomnessSizeAllowed(size) {
		abortWithError(c, badRequest("size %d is out of range", size))
		return
	}
	values, err := h.explorer.GetRandomness(c.Request.Context(), block, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"randomness": values})
}

func (h *Handler) GetDistributionEvents(c *gin.Context) {
	start, err := queryUint(c, "start", 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	end, err := queryUint(c, "end", 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if end != 0 && start > end {
		abortWithError(c, badRequest("start %d is after end %d", start, end))
		return
	}
	events, err := h.events.GetRandomnessDistributionEvents(c.Request.Context(), start, end)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
