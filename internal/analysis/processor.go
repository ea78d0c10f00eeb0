package analysis

import (
	"vigil-worker-go/internal/models"
)

// Processor analyzes raw frames for one camera. A processor instance is
// owned by exactly one pipeline goroutine at a time and may keep per-camera
// state between frames (previous frame, running averages). It must not keep
// state a replacement instance would need: a swap always starts fresh.
//
// Process returns the frame to forward to viewers (the input data unchanged,
// or an annotated copy) plus zero or more records describing what it saw.
type Processor interface {
	Process(frame *models.RawFrame) (annotated []byte, records []models.Record, err error)
}

// Factory builds a fresh processor instance bound to a camera.
type Factory func(cameraID string) Processor

// Descriptor is the catalog entry of an analysis unit.
type Descriptor struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`

	Factory Factory `json:"-"`
}
