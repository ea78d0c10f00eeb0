package models

import "time"

// RawFrame is a single frame as delivered by a capture source (BGR24 bytes).
type RawFrame struct {
	CameraID  string
	Data      []byte
	Timestamp time.Time
	FrameID   int64
	Width     int
	Height    int
	Format    string
}

// ProcessedFrame is a frame after admission control and (optionally) analysis.
// Analyzed is false for frames forwarded un-analyzed under a stride > 1 lease.
type ProcessedFrame struct {
	CameraID  string
	Data      []byte
	Timestamp time.Time
	FrameID   int64
	Width     int
	Height    int

	Analyzed  bool
	Processor string
	Elapsed   time.Duration // active time of the pipeline when this frame was produced
	FPS       float64
}

// Record is a timestamped, processor-defined key/value payload emitted
// alongside an analyzed frame. Ownership transfers to the sinks on emission.
type Record struct {
	CameraID  string                 `json:"camera_id"`
	Processor string                 `json:"processor"`
	Timestamp time.Time              `json:"timestamp"`
	FrameID   int64                  `json:"frame_id"`
	Fields    map[string]float64     `json:"fields"`
	Labels    map[string]string      `json:"labels,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}
