package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

func (h *Handler) GetAccount(c *gin.Context) {
	view, err := h.dashboard.Account(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.state.GetBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *Handler) GetAccountSubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.GetSubscriptionsForAccount(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if subs == nil {
		subs = []core.Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}
