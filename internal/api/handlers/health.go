package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vigil-worker-go/internal/config"
)

type HealthHandler struct {
	cfg    *config.Config
	device *config.DeviceFile
}

func NewHealthHandler(cfg *config.Config, device *config.DeviceFile) *HealthHandler {
	return &HealthHandler{cfg: cfg, device: device}
}

type HealthResponse struct {
	Status   string `json:"status"`
	WorkerID string `json:"worker_id"`
}

type WorkerInfoResponse struct {
	WorkerID    string `json:"worker_id"`
	DeviceID    string `json:"device_id"`
	DeviceLabel string `json:"device_label"`
	Location    string `json:"location,omitempty"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Cameras     int    `json:"cameras"`
}

// HealthCheck reports liveness.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		WorkerID: h.cfg.WorkerID,
	})
}

// WorkerInfo describes this worker and its device.
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID:    h.cfg.WorkerID,
		DeviceID:    h.device.DeviceID,
		DeviceLabel: h.device.DeviceLabel,
		Location:    h.device.Location,
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		Cameras:     len(h.device.Cameras),
	})
}
