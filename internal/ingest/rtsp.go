package ingest

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"vigil-worker-go/internal/models"
)

// RTSPSource reads frames from an RTSP camera through OpenCV's FFmpeg
// backend, resized to a fixed output geometry and packed as BGR24 bytes.
// It satisfies the capture source contract: Open may be called again after
// a failed Read cycle.
type RTSPSource struct {
	cameraID string
	url      string
	width    int
	height   int

	cap     *gocv.VideoCapture
	img     gocv.Mat
	frameID int64
}

func NewRTSPSource(cameraID, url string, width, height int) *RTSPSource {
	return &RTSPSource{
		cameraID: cameraID,
		url:      url,
		width:    width,
		height:   height,
	}
}

// Open connects to the stream. TCP transport with a short socket timeout
// keeps a dead camera from stalling reads for minutes.
func (s *RTSPSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", "rtsp_transport;tcp|stimeout;5000000|max_delay;500000")

	cap, err := gocv.OpenVideoCaptureWithAPI(s.url, gocv.VideoCaptureFFmpeg)
	if err != nil {
		return fmt.Errorf("opening RTSP stream %s: %w", s.url, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("RTSP stream %s not opened", s.url)
	}

	// Keep the driver-side queue at one frame so reads track the live edge.
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	log.Info().
		Str("camera_id", s.cameraID).
		Float64("source_fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("source_width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("source_height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("RTSP stream opened")

	s.cap = cap
	s.img = gocv.NewMat()
	return nil
}

func (s *RTSPSource) Read() (*models.RawFrame, error) {
	if s.cap == nil {
		return nil, fmt.Errorf("camera %s: source not open", s.cameraID)
	}
	if ok := s.cap.Read(&s.img); !ok {
		return nil, fmt.Errorf("camera %s: frame read failed", s.cameraID)
	}
	if s.img.Empty() {
		return nil, fmt.Errorf("camera %s: empty frame", s.cameraID)
	}

	out := s.img
	resized := false
	if s.img.Cols() != s.width || s.img.Rows() != s.height {
		out = gocv.NewMat()
		gocv.Resize(s.img, &out, image.Pt(s.width, s.height), 0, 0, gocv.InterpolationLinear)
		resized = true
	}
	data := out.ToBytes()
	if resized {
		out.Close()
	}

	s.frameID++
	return &models.RawFrame{
		CameraID:  s.cameraID,
		Data:      data,
		Timestamp: time.Now(),
		FrameID:   s.frameID,
		Width:     s.width,
		Height:    s.height,
		Format:    "BGR24",
	}, nil
}

func (s *RTSPSource) Close() error {
	if s.cap == nil {
		return nil
	}
	s.img.Close()
	err := s.cap.Close()
	s.cap = nil
	return err
}
