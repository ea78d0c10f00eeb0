package models

import "time"

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is created by the alerts engine when a threshold rule fires.
// It is mutated only by the read-marking operations and never deleted.
type Alert struct {
	ID        string                 `json:"alert_id"`
	CameraID  string                 `json:"camera_id"`
	Rule      string                 `json:"rule"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// Rule is a threshold comparison evaluated against the most recent records
// of a camera, e.g. field "count", op ">", value 10.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Field    string   `yaml:"field" json:"field"`
	Op       string   `yaml:"op" json:"op"` // one of > >= < <= ==
	Value    float64  `yaml:"value" json:"value"`
	Severity Severity `yaml:"severity" json:"severity"`
	Message  string   `yaml:"message" json:"message"`
}
