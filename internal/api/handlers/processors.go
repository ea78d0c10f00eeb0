package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vigil-worker-go/internal/analysis"
)

type ProcessorHandler struct {
	registry *analysis.Registry
}

func NewProcessorHandler(registry *analysis.Registry) *ProcessorHandler {
	return &ProcessorHandler{registry: registry}
}

// ListProcessors returns the analysis unit catalog.
func (h *ProcessorHandler) ListProcessors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"processors": h.registry.List()})
}
