package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/fanout"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/pipeline"
)

type StreamHandler struct {
	cfg      *config.Config
	manager  *pipeline.Manager
	hub      *fanout.Hub
	upgrader websocket.Upgrader
}

func NewStreamHandler(cfg *config.Config, manager *pipeline.Manager, hub *fanout.Hub) *StreamHandler {
	return &StreamHandler{
		cfg:     cfg,
		manager: manager,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// encodeJPEG converts BGR24 frame bytes to JPEG.
func encodeJPEG(frame *models.ProcessedFrame, quality int) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("creating Mat from frame data: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	jpeg := make([]byte, len(b))
	copy(jpeg, b)
	return jpeg, nil
}

// Snapshot returns the most recent frame of a running camera as JPEG.
func (h *StreamHandler) Snapshot(c *gin.Context) {
	cameraID := c.Param("id")
	p := h.manager.Pipeline(cameraID)
	if p == nil {
		writeError(c, models.ErrNotRunning)
		return
	}
	frame := p.LatestFrame()
	if frame == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no frame captured yet"})
		return
	}
	jpeg, err := encodeJPEG(frame, h.cfg.OutputQuality)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/jpeg", jpeg)
}

// StreamMJPEG serves a multipart MJPEG stream. The viewer counts against
// the process-wide stream cap; past the cap the request is refused.
func (h *StreamHandler) StreamMJPEG(c *gin.Context) {
	cameraID := c.Param("id")
	if p := h.manager.Pipeline(cameraID); p == nil {
		writeError(c, models.ErrNotRunning)
		return
	}

	sub, err := h.hub.Subscribe(cameraID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Unsubscribe()

	w := c.Writer
	boundary := "frame"
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Resend the last part on a slow cadence so proxies keep the
	// connection alive through capture stalls.
	keepalive := time.NewTicker(2 * time.Second)
	defer keepalive.Stop()

	var lastJPEG []byte
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, open := <-sub.C:
			if !open {
				return
			}
			jpeg, err := encodeJPEG(frame, h.cfg.OutputQuality)
			if err != nil {
				log.Warn().Err(err).Str("camera_id", cameraID).Msg("Frame encode failed")
				continue
			}
			lastJPEG = jpeg
			if !writePart(jpeg) {
				return
			}
		case <-keepalive.C:
			if len(lastJPEG) > 0 {
				if !writePart(lastJPEG) {
					return
				}
			}
		}
	}
}

// wsFrameMeta precedes every binary frame on the websocket.
type wsFrameMeta struct {
	CameraID  string  `json:"camera_id"`
	FrameID   int64   `json:"frame_id"`
	Analyzed  bool    `json:"analyzed"`
	Processor string  `json:"processor,omitempty"`
	FPS       float64 `json:"fps"`
	Timestamp int64   `json:"timestamp_ms"`
	Elapsed   int64   `json:"elapsed_ms"`
}

func frameMeta(frame *models.ProcessedFrame) wsFrameMeta {
	return wsFrameMeta{
		CameraID:  frame.CameraID,
		FrameID:   frame.FrameID,
		Analyzed:  frame.Analyzed,
		Processor: frame.Processor,
		FPS:       frame.FPS,
		Timestamp: frame.Timestamp.UnixMilli(),
		Elapsed:   frame.Elapsed.Milliseconds(),
	}
}

// StreamWebSocket serves frames over a websocket: a JSON metadata message
// followed by the JPEG bytes as a binary message.
func (h *StreamHandler) StreamWebSocket(c *gin.Context) {
	cameraID := c.Param("id")
	if p := h.manager.Pipeline(cameraID); p == nil {
		writeError(c, models.ErrNotRunning)
		return
	}

	sub, err := h.hub.Subscribe(cameraID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Unsubscribe()
		log.Warn().Err(err).Str("camera_id", cameraID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	defer sub.Unsubscribe()

	// Discard client messages but notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Unsubscribe()
				return
			}
		}
	}()

	for frame := range sub.C {
		jpeg, err := encodeJPEG(frame, h.cfg.OutputQuality)
		if err != nil {
			continue
		}
		if err := conn.WriteJSON(frameMeta(frame)); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
			return
		}
	}
}
