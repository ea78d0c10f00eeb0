package models

import "time"

// ComputeClass is the class of compute a pipeline runs on.
type ComputeClass string

const (
	ComputeAccelerated ComputeClass = "accelerated"
	ComputeGeneral     ComputeClass = "general"
)

// CameraConfig is the immutable identity of a camera as declared in the
// device file. Only the active processor reference changes at runtime.
type CameraConfig struct {
	ID                  string `yaml:"id" json:"id"`
	Label               string `yaml:"label" json:"label"`
	URL                 string `yaml:"url" json:"url"`
	AcceleratedEligible bool   `yaml:"accelerated_eligible" json:"accelerated_eligible"`
	InitialProcessor    string `yaml:"processor" json:"processor"`
	Enabled             bool   `yaml:"enabled" json:"enabled"`
}

// PipelineState is the lifecycle state of a camera pipeline.
type PipelineState string

const (
	StateStopped  PipelineState = "stopped"
	StateStarting PipelineState = "starting"
	StateRunning  PipelineState = "running"
	StateStopping PipelineState = "stopping"
)

// CameraStatus is the API view of a running (or known) camera.
type CameraStatus struct {
	CameraID      string        `json:"camera_id"`
	Label         string        `json:"label"`
	URL           string        `json:"url"`
	State         PipelineState `json:"state"`
	Processor     string        `json:"processor,omitempty"`
	ComputeClass  ComputeClass  `json:"compute_class,omitempty"`
	Stride        int           `json:"stride,omitempty"`
	Degraded      bool          `json:"degraded"`
	FrameCount    int64         `json:"frame_count"`
	AnalyzedCount int64         `json:"analyzed_count"`
	DroppedFrames int64         `json:"dropped_frames"`
	Reconnects    int64         `json:"reconnects"`
	FPS           float64       `json:"fps"`
	LastFrameTime time.Time     `json:"last_frame_time"`
	StartedAt     time.Time     `json:"started_at"`
}

// SwapRequest asks the manager to replace a camera's active processor.
type SwapRequest struct {
	ProcessorID string `json:"processor_id" binding:"required"`
}
