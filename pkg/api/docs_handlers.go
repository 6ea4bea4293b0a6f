package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideal-lab5/idn-explorer/pkg/api/openapi"
)

func (h *Handler) GetOpenAPIJSON(c *gin.Context) {
	doc, err := openapi.JSON()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func (h *Handler) GetOpenAPIYAML(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openapi.YAML())
}
