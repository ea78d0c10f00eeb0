package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/pipeline"
)

type CameraHandler struct {
	manager *pipeline.Manager
}

func NewCameraHandler(manager *pipeline.Manager) *CameraHandler {
	return &CameraHandler{manager: manager}
}

// ListCameras returns every configured camera with its runtime state.
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.manager.Statuses()})
}

// GetCameraStatus returns one camera's status.
func (h *CameraHandler) GetCameraStatus(c *gin.Context) {
	cameraID := c.Param("id")
	for _, status := range h.manager.Statuses() {
		if status.CameraID == cameraID {
			c.JSON(http.StatusOK, status)
			return
		}
	}
	writeError(c, models.ErrUnknownCamera)
}

type activateRequest struct {
	ProcessorID string `json:"processor_id"`
}

// ActivateCamera starts a camera's pipeline. The processor is optional and
// defaults to the one configured in the device file.
func (h *CameraHandler) ActivateCamera(c *gin.Context) {
	cameraID := c.Param("id")

	var req activateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	if err := h.manager.Activate(c.Request.Context(), cameraID, req.ProcessorID); err != nil {
		log.Error().Err(err).Str("camera_id", cameraID).Msg("Failed to activate camera")
		writeError(c, err)
		return
	}

	log.Info().Str("camera_id", cameraID).Msg("Camera activated")
	c.JSON(http.StatusOK, gin.H{"camera_id": cameraID, "state": models.StateRunning})
}

// DeactivateCamera stops a camera's pipeline. Deactivating an inactive
// camera succeeds without doing anything.
func (h *CameraHandler) DeactivateCamera(c *gin.Context) {
	cameraID := c.Param("id")

	if err := h.manager.Deactivate(cameraID); err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("camera_id", cameraID).Msg("Camera deactivated")
	c.JSON(http.StatusOK, gin.H{"camera_id": cameraID, "state": models.StateStopped})
}

// SwapProcessor replaces the active analysis unit of a running camera.
func (h *CameraHandler) SwapProcessor(c *gin.Context) {
	cameraID := c.Param("id")

	var req models.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.manager.Swap(cameraID, req.ProcessorID); err != nil {
		log.Error().Err(err).
			Str("camera_id", cameraID).
			Str("processor", req.ProcessorID).
			Msg("Failed to swap processor")
		writeError(c, err)
		return
	}

	log.Info().
		Str("camera_id", cameraID).
		Str("processor", req.ProcessorID).
		Msg("Processor swapped")
	c.JSON(http.StatusOK, gin.H{"camera_id": cameraID, "processor": req.ProcessorID})
}
