package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// GetHistoricalTransactions reads executed transactions from an explicit block range.
func (h *Handler) GetHistoricalTransactions(c *gin.Context) {
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
	if start == 0 || end == 0 {
		abortWithError(c, badRequest("'start' and 'end' are required"))
		return
	}
	txs, err := h.explorer.QueryHistoricalEvents(c.Request.Context(), start, end)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if txs == nil {
		txs = []core.ExecutedTransaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// GetExecutedTransactions pages over the recent executed transactions of the dashboard.
func (h *Handler) GetExecutedTransactions(c *gin.Context) {
	offset, limit, err := h.pagination(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter := core.TransactionFilter{
		Owner:     c.Query("owner"),
		Operation: c.Query("operation"),
		Status:    c.Query("status"),
	}
	c.JSON(http.StatusOK, h.dashboard.Executed(filter, offset, limit))
}

func (h *Handler) GetScheduledTransactions(c *gin.Context) {
	offset, limit, err := h.pagination(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.dashboard.Scheduled(c.Query("owner"), offset, limit))
}
