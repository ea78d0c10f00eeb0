package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/analysis"
	"vigil-worker-go/internal/capture"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/sched"
)

// FramePublisher receives every frame the pipeline forwards to viewers.
type FramePublisher interface {
	Publish(frame *models.ProcessedFrame)
}

// RecordSink receives the records an analysis unit emits. Append must not
// block for long; it runs on the pipeline goroutine. Forget tells the sink
// the camera's pipeline stopped, so sinks holding latest-value state can
// drop it instead of acting on stale data forever.
type RecordSink interface {
	Append(cameraID string, records []models.Record)
	Forget(cameraID string)
}

// MultiSink fans records out to several sinks.
type MultiSink []RecordSink

func (m MultiSink) Append(cameraID string, records []models.Record) {
	for _, sink := range m {
		sink.Append(cameraID, records)
	}
}

func (m MultiSink) Forget(cameraID string) {
	for _, sink := range m {
		sink.Forget(cameraID)
	}
}

// Options tunes per-pipeline behavior.
type Options struct {
	// ForwardSkippedFrames controls whether frames not admitted by the
	// stride still reach viewers (un-analyzed).
	ForwardSkippedFrames bool
	// DegradedThreshold is the number of consecutive processor failures
	// after which the pipeline is flagged degraded. It keeps running.
	DegradedThreshold int
	// FPSWindowSize is the number of recent frames the FPS estimate covers.
	FPSWindowSize int
}

// activeUnit pairs a processor instance with the id it was built from, so a
// single atomic load gives the loop a consistent view during swaps.
type activeUnit struct {
	id   string
	proc analysis.Processor
}

// Pipeline runs one camera: capture, stride admission, analysis, fan-out.
// The frame loop is a single goroutine; control operations (Swap, Stop) are
// safe to call from any goroutine at any time.
type Pipeline struct {
	cam     models.CameraConfig
	capture *capture.Capture
	lease   *sched.Lease
	opts    Options

	publisher FramePublisher
	records   RecordSink
	log       zerolog.Logger

	active atomic.Pointer[activeUnit]

	stateMu sync.RWMutex
	state   models.PipelineState

	cancel context.CancelFunc
	done   chan struct{}

	startedAt     time.Time
	frameCount    atomic.Int64
	analyzedCount atomic.Int64
	failStreak    atomic.Int32
	degraded      atomic.Bool
	lastFrame     atomic.Pointer[models.ProcessedFrame]

	fpsMu    sync.Mutex
	fpsTimes []time.Time
}

func New(cam models.CameraConfig, cap *capture.Capture, lease *sched.Lease,
	desc analysis.Descriptor, publisher FramePublisher, records RecordSink,
	opts Options, logger zerolog.Logger) *Pipeline {

	if opts.DegradedThreshold < 1 {
		opts.DegradedThreshold = 3
	}
	if opts.FPSWindowSize < 2 {
		opts.FPSWindowSize = 30
	}
	p := &Pipeline{
		cam:       cam,
		capture:   cap,
		lease:     lease,
		opts:      opts,
		publisher: publisher,
		records:   records,
		log:       logger.With().Str("camera_id", cam.ID).Logger(),
		state:     models.StateStopped,
		done:      make(chan struct{}),
	}
	p.active.Store(&activeUnit{id: desc.ID, proc: desc.Factory(cam.ID)})
	return p
}

// Start begins capturing and processing. It returns once the loop is
// launched; connection retries happen inside the capture unit.
func (p *Pipeline) Start(ctx context.Context) {
	p.setState(models.StateStarting)
	p.startedAt = time.Now()

	ctx, p.cancel = context.WithCancel(ctx)
	p.capture.Start(ctx)
	go p.loop(ctx)

	p.setState(models.StateRunning)
	p.log.Info().
		Str("processor", p.active.Load().id).
		Str("compute_class", string(p.lease.Class)).
		Int("stride", p.lease.Stride).
		Msg("Pipeline started")
}

func (p *Pipeline) loop(ctx context.Context) {
	defer close(p.done)

	var frameIdx int64
	for {
		frame := p.capture.Next(ctx)
		if frame == nil {
			return
		}
		frameIdx++
		p.frameCount.Add(1)
		p.recordFrameTime(frame.Timestamp)

		admitted := frameIdx%int64(p.lease.Stride) == 0
		if !admitted {
			if p.opts.ForwardSkippedFrames {
				p.forward(frame, frame.Data, false, "")
			}
			continue
		}

		unit := p.active.Load()
		annotated, recs, err := p.process(unit, frame)
		if err != nil {
			streak := p.failStreak.Add(1)
			p.log.Warn().
				Str("processor", unit.id).
				Int64("frame_id", frame.FrameID).
				Err(err).
				Msg("Analysis failed, skipping frame")
			if int(streak) >= p.opts.DegradedThreshold && !p.degraded.Load() {
				p.degraded.Store(true)
				p.log.Error().
					Str("processor", unit.id).
					Int32("consecutive_failures", streak).
					Msg("Pipeline degraded, analysis failing persistently")
			}
			if p.opts.ForwardSkippedFrames {
				p.forward(frame, frame.Data, false, "")
			}
			continue
		}
		p.failStreak.Store(0)
		if p.degraded.Swap(false) {
			p.log.Info().Msg("Pipeline recovered from degraded state")
		}
		p.analyzedCount.Add(1)

		p.forward(frame, annotated, true, unit.id)
		if len(recs) > 0 && p.records != nil {
			p.records.Append(p.cam.ID, recs)
		}
	}
}

// process runs the unit with panic isolation. A panicking processor costs
// one frame, never the pipeline.
func (p *Pipeline) process(unit *activeUnit, frame *models.RawFrame) (annotated []byte, recs []models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Str("processor", unit.id).
				Interface("panic", r).
				Msg("Recovered from processor panic")
			annotated, recs = nil, nil
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return unit.proc.Process(frame)
}

func (p *Pipeline) forward(frame *models.RawFrame, data []byte, analyzed bool, processor string) {
	out := &models.ProcessedFrame{
		CameraID:  frame.CameraID,
		Data:      data,
		Timestamp: frame.Timestamp,
		FrameID:   frame.FrameID,
		Width:     frame.Width,
		Height:    frame.Height,
		Analyzed:  analyzed,
		Processor: processor,
		Elapsed:   time.Since(p.startedAt),
		FPS:       p.fps(),
	}
	p.lastFrame.Store(out)
	if p.publisher != nil {
		p.publisher.Publish(out)
	}
}

// Swap replaces the active analysis unit. The new instance is built before
// it is published, so the loop only ever sees a ready processor. The old
// instance is dropped with its state.
func (p *Pipeline) Swap(desc analysis.Descriptor) {
	prev := p.active.Swap(&activeUnit{id: desc.ID, proc: desc.Factory(p.cam.ID)})
	p.failStreak.Store(0)
	p.degraded.Store(false)
	p.log.Info().
		Str("from", prev.id).
		Str("to", desc.ID).
		Msg("Swapped analysis unit")
}

// Stop halts the loop, the capture unit and releases the compute lease.
// Idempotent; returns once the frame loop has exited.
func (p *Pipeline) Stop() {
	p.stateMu.Lock()
	if p.state == models.StateStopped || p.state == models.StateStopping {
		p.stateMu.Unlock()
		return
	}
	p.state = models.StateStopping
	p.stateMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.capture.Stop()
	<-p.done
	p.lease.Release()
	if p.records != nil {
		p.records.Forget(p.cam.ID)
	}

	p.setState(models.StateStopped)
	p.log.Info().
		Int64("frames", p.frameCount.Load()).
		Int64("analyzed", p.analyzedCount.Load()).
		Msg("Pipeline stopped")
}

func (p *Pipeline) setState(s models.PipelineState) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() models.PipelineState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// LatestFrame returns the most recently forwarded frame, or nil.
func (p *Pipeline) LatestFrame() *models.ProcessedFrame {
	return p.lastFrame.Load()
}

// Status assembles the API view of this pipeline.
func (p *Pipeline) Status() models.CameraStatus {
	_, dropped, reconnects := p.capture.Stats()
	status := models.CameraStatus{
		CameraID:      p.cam.ID,
		Label:         p.cam.Label,
		URL:           p.cam.URL,
		State:         p.State(),
		Processor:     p.active.Load().id,
		ComputeClass:  p.lease.Class,
		Stride:        p.lease.Stride,
		Degraded:      p.degraded.Load(),
		FrameCount:    p.frameCount.Load(),
		AnalyzedCount: p.analyzedCount.Load(),
		DroppedFrames: dropped,
		Reconnects:    reconnects,
		FPS:           p.fps(),
		StartedAt:     p.startedAt,
	}
	if frame := p.lastFrame.Load(); frame != nil {
		status.LastFrameTime = frame.Timestamp
	}
	return status
}

func (p *Pipeline) recordFrameTime(t time.Time) {
	p.fpsMu.Lock()
	defer p.fpsMu.Unlock()
	p.fpsTimes = append(p.fpsTimes, t)
	if len(p.fpsTimes) > p.opts.FPSWindowSize {
		p.fpsTimes = p.fpsTimes[len(p.fpsTimes)-p.opts.FPSWindowSize:]
	}
}

// fps estimates throughput over the recent frame window.
func (p *Pipeline) fps() float64 {
	p.fpsMu.Lock()
	defer p.fpsMu.Unlock()
	n := len(p.fpsTimes)
	if n < 2 {
		return 0
	}
	window := p.fpsTimes[n-1].Sub(p.fpsTimes[0]).Seconds()
	if window <= 0 {
		return 0
	}
	return float64(n-1) / window
}
