package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
)

type statusResponse struct {
	State     dashboard.ConnState `json:"state"`
	Head      uint64              `json:"head"`
	UpdatedAt time.Time           `json:"updated_at"`
	// Signer is the address write endpoints sign with, empty when writes are disabled.
	Signer string `json:"signer,omitempty"`
}

func (h *Handler) GetStatus(c *gin.Context) {
	snapshot := h.dashboard.Snapshot()
	res := statusResponse{
		State:     snapshot.State,
		Head:      snapshot.Head.Number,
		UpdatedAt: snapshot.UpdatedAt,
	}
	if h.signer != nil {
		res.Signer = h.signer.Address()
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetSessionInfo(c *gin.Context) {
	info, err := h.state.GetSessionInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) GetPallets(c *gin.Context) {
	pallets, err := h.state.GetPallets(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pallets": pallets})
}

func (h *Handler) GetExtrinsics(c *gin.Context) {
	pallet := c.Param("pallet")
	extrinsics, err := h.state.GetExtrinsics(c.Request.Context(), pallet)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pallet": pallet, "extrinsics": extrinsics})
}

func (h *Handler) GetExtrinsicParameters(c *gin.Context) {
	params, err := h.state.GetExtrinsicParameters(c.Request.Context(), c.Param("pallet"), c.Param("extrinsic"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if params == nil {
		params = []core.ExtrinsicParameter{}
	}
	c.JSON(http.StatusOK, gin.H{"parameters": params})
}
