package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/subscriptions"
)

type createSubscriptionRequest struct {
	Credits        uint64         `json:"credits"`
	Target         core.Location  `json:"target"`
	CallIndex      core.CallIndex `json:"call_index"`
	Frequency      uint32         `json:"frequency"`
	Metadata       *string        `json:"metadata"`
	SubscriptionID string         `json:"subscription_id"`
}

type updateSubscriptionRequest struct {
	Credits   *uint64 `json:"credits"`
	Frequency *uint32 `json:"frequency"`
	Metadata  *string `json:"metadata"`
}

func (h *Handler) GetSubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.GetAllSubscriptions(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) writeSigner() (chain.Signer, error) {
	if h.signer == nil {
		return nil, errors.Wrap(core.ErrUnsupported, "no signer configured")
	}
	return h.signer, nil
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	signer, err := h.writeSigner()
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("decode request: %v", err))
		return
	}
	receipt, err := h.subscriptions.CreateSubscription(c.Request.Context(), signer, subscriptions.CreateParams{
		Credits:        req.Credits,
		Target:         req.Target,
		CallIndex:      req.CallIndex,
		Frequency:      req.Frequency,
		Metadata:       req.Metadata,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) UpdateSubscription(c *gin.Context) {
	signer, err := h.writeSigner()
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("decode request: %v", err))
		return
	}
	if req.Credits == nil && req.Frequency == nil && req.Metadata == nil {
		abortWithError(c, badRequest("nothing to update"))
		return
	}
	receipt, err := h.subscriptions.UpdateSubscription(c.Request.Context(), signer, c.Param("id"), subscriptions.UpdateParams{
		Credits:   req.Credits,
		Frequency: req.Frequency,
		Metadata:  req.Metadata,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

type manageFn func(ctx *gin.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error)

func (h *Handler) manage(fn manageFn) gin.HandlerFunc {
	return func(c *gin.Context) {
		signer, err := h.writeSigner()
		if err != nil {
			abortWithError(c, err)
			return
		}
		receipt, err := fn(c, signer, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}

func (h *Handler) PauseSubscription(c *gin.Context) {
	h.manage(func(c *gin.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
		return h.subscriptions.PauseSubscription(c.Request.Context(), signer, id)
	})(c)
}

func (h *Handler) KillSubscription(c *gin.Context) {
	h.manage(func(c *gin.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
		return h.subscriptions.KillSubscription(c.Request.Context(), signer, id)
	})(c)
}

func (h *Handler) ReactivateSubscription(c *gin.Context) {
	h.manage(func(c *gin.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
		return h.subscriptions.ReactivateSubscription(c.Request.Context(), signer, id)
	})(c)
}
