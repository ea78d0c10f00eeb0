package alerts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

// Publisher pushes fired alerts to the message bus. Optional.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// Options tunes the evaluation cadence and history retention.
type Options struct {
	EvalInterval time.Duration
	Debounce     time.Duration
	Retention    int // alerts kept per camera
	Subject      string
}

// Engine evaluates threshold rules against the latest records of each
// camera on a fixed cadence. Rules read the most recent value of a field;
// records arriving between ticks overwrite each other, which is the point:
// alerts describe the current state, not the full history.
type Engine struct {
	rules     []models.Rule
	opts      Options
	publisher Publisher
	log       zerolog.Logger

	mu     sync.Mutex
	latest map[string]map[string]models.Record // camera -> field source processor record
	fired  map[string]time.Time                // camera+rule -> last fire time
	alerts map[string][]*models.Alert          // camera -> newest-last ring
	byID   map[string]*models.Alert

	now func() time.Time
}

func NewEngine(rules []models.Rule, publisher Publisher, opts Options, logger zerolog.Logger) *Engine {
	if opts.EvalInterval <= 0 {
		opts.EvalInterval = 3 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 10 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 100
	}
	if opts.Subject == "" {
		opts.Subject = "alerts"
	}
	return &Engine{
		rules:     rules,
		opts:      opts,
		publisher: publisher,
		log:       logger,
		latest:    make(map[string]map[string]models.Record),
		fired:     make(map[string]time.Time),
		alerts:    make(map[string][]*models.Alert),
		byID:      make(map[string]*models.Alert),
		now:       time.Now,
	}
}

// Append stores the newest records for a camera. Implements the pipeline
// record sink contract; called from pipeline goroutines.
func (e *Engine) Append(cameraID string, records []models.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	byProc := e.latest[cameraID]
	if byProc == nil {
		byProc = make(map[string]models.Record)
		e.latest[cameraID] = byProc
	}
	for _, rec := range records {
		byProc[rec.Processor] = rec
	}
}

// Forget drops a camera's latest records and debounce state. Called when the
// camera's pipeline stops so stale records cannot keep re-firing rules after
// every debounce window. Alert history stays.
func (e *Engine) Forget(cameraID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.latest, cameraID)
	prefix := cameraID + "/"
	for key := range e.fired {
		if strings.HasPrefix(key, prefix) {
			delete(e.fired, key)
		}
	}
}

// Run evaluates rules until ctx ends.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.EvalInterval)
	defer ticker.Stop()

	e.log.Info().
		Int("rules", len(e.rules)).
		Dur("interval", e.opts.EvalInterval).
		Msg("Alerts engine started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("Alerts engine stopped")
			return
		case <-ticker.C:
			e.Evaluate()
		}
	}
}

// Evaluate runs one evaluation pass over all cameras and rules.
func (e *Engine) Evaluate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for cameraID, byProc := range e.latest {
		for _, rule := range e.rules {
			value, ok := latestField(byProc, rule.Field)
			if !ok || !compare(value, rule.Op, rule.Value) {
				continue
			}

			key := cameraID + "/" + rule.Name
			if last, seen := e.fired[key]; seen && now.Sub(last) < e.opts.Debounce {
				continue
			}
			e.fired[key] = now
			e.fire(cameraID, rule, value, now)
		}
	}
}

func (e *Engine) fire(cameraID string, rule models.Rule, value float64, now time.Time) {
	alert := &models.Alert{
		ID:       uuid.NewString(),
		CameraID: cameraID,
		Rule:     rule.Name,
		Severity: rule.Severity,
		Message:  rule.Message,
		Context: map[string]interface{}{
			"field":     rule.Field,
			"value":     value,
			"threshold": rule.Value,
			"op":        rule.Op,
		},
		CreatedAt: now,
	}

	ring := append(e.alerts[cameraID], alert)
	if len(ring) > e.opts.Retention {
		for _, old := range ring[:len(ring)-e.opts.Retention] {
			delete(e.byID, old.ID)
		}
		ring = ring[len(ring)-e.opts.Retention:]
	}
	e.alerts[cameraID] = ring
	e.byID[alert.ID] = alert

	e.log.Warn().
		Str("camera_id", cameraID).
		Str("rule", rule.Name).
		Str("severity", string(alert.Severity)).
		Float64("value", value).
		Float64("threshold", rule.Value).
		Msg("Alert fired")

	if e.publisher != nil {
		if err := e.publisher.Publish(e.opts.Subject, alert); err != nil {
			e.log.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to publish alert")
		}
	}
}

// List returns alerts newest-first. Empty cameraID means all cameras;
// unreadOnly filters to unread alerts.
func (e *Engine) List(cameraID string, unreadOnly bool) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.Alert
	appendRing := func(ring []*models.Alert) {
		for _, a := range ring {
			if unreadOnly && a.Read {
				continue
			}
			out = append(out, *a)
		}
	}
	if cameraID != "" {
		appendRing(e.alerts[cameraID])
	} else {
		for _, ring := range e.alerts {
			appendRing(ring)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MarkRead flags one alert as read. Returns false for unknown ids.
func (e *Engine) MarkRead(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.byID[alertID]
	if !ok {
		return false
	}
	alert.Read = true
	return true
}

// MarkAllRead flags every alert as read and reports how many changed.
func (e *Engine) MarkAllRead() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := 0
	for _, ring := range e.alerts {
		for _, a := range ring {
			if !a.Read {
				a.Read = true
				changed++
			}
		}
	}
	return changed
}

// latestField finds the most recent record carrying the field across all
// processors that reported for the camera.
func latestField(byProc map[string]models.Record, field string) (float64, bool) {
	var best models.Record
	found := false
	for _, rec := range byProc {
		if _, ok := rec.Fields[field]; !ok {
			continue
		}
		if !found || rec.Timestamp.After(best.Timestamp) {
			best = rec
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best.Fields[field], true
}

func compare(value float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	default:
		return false
	}
}
