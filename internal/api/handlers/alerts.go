package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vigil-worker-go/internal/alerts"
)

type AlertHandler struct {
	engine *alerts.Engine
}

func NewAlertHandler(engine *alerts.Engine) *AlertHandler {
	return &AlertHandler{engine: engine}
}

// ListAlerts returns alerts newest-first, filterable by camera_id and
// unread_only query parameters.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	cameraID := c.Query("camera_id")
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))

	list := h.engine.List(cameraID, unreadOnly)
	c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
}

// MarkRead flags one alert as read.
func (h *AlertHandler) MarkRead(c *gin.Context) {
	alertID := c.Param("id")
	if !h.engine.MarkRead(alertID) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": alertID, "read": true})
}

// MarkAllRead flags every alert as read.
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	changed := h.engine.MarkAllRead()
	c.JSON(http.StatusOK, gin.H{"marked": changed})
}
