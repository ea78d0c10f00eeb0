package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"vigil-worker-go/internal/analysis"
	"vigil-worker-go/internal/capture"
	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/sched"
)

// SourceFactory builds a capture source for a camera. Injected so tests and
// alternative transports do not need a real RTSP stack.
type SourceFactory func(cam models.CameraConfig) capture.Source

// Manager owns the pipelines of all configured cameras. Operations on
// different cameras run concurrently; operations on the same camera are
// serialized through a per-camera lock so activate/deactivate/swap never
// interleave.
type Manager struct {
	device    *config.DeviceFile
	registry  *analysis.Registry
	scheduler *sched.Scheduler
	sources   SourceFactory
	publisher FramePublisher
	records   RecordSink
	capOpts   capture.Options
	pipeOpts  Options
	log       zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu sync.Mutex
	p  *Pipeline
}

func NewManager(device *config.DeviceFile, registry *analysis.Registry, scheduler *sched.Scheduler,
	sources SourceFactory, publisher FramePublisher, records RecordSink,
	capOpts capture.Options, pipeOpts Options, logger zerolog.Logger) *Manager {

	return &Manager{
		device:    device,
		registry:  registry,
		scheduler: scheduler,
		sources:   sources,
		publisher: publisher,
		records:   records,
		capOpts:   capOpts,
		pipeOpts:  pipeOpts,
		log:       logger,
		entries:   make(map[string]*entry),
	}
}

func (m *Manager) entryFor(cameraID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[cameraID]
	if !ok {
		e = &entry{}
		m.entries[cameraID] = e
	}
	return e
}

// Activate starts a camera's pipeline with the given processor. Activating
// an already-running camera is a no-op and keeps its current processor.
func (m *Manager) Activate(ctx context.Context, cameraID, processorID string) error {
	cam, ok := m.device.Camera(cameraID)
	if !ok {
		return models.ErrUnknownCamera
	}
	if processorID == "" {
		processorID = cam.InitialProcessor
	}
	desc, err := m.registry.Get(processorID)
	if err != nil {
		return err
	}

	e := m.entryFor(cameraID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p != nil && e.p.State() != models.StateStopped {
		m.log.Debug().Str("camera_id", cameraID).Msg("Activate on running camera, no-op")
		return nil
	}

	cap := capture.New(cam.ID, m.sources(cam), m.capOpts, m.log)
	lease := m.scheduler.Acquire(cam)
	e.p = New(cam, cap, lease, desc, m.publisher, m.records, m.pipeOpts, m.log)
	e.p.Start(ctx)
	return nil
}

// Deactivate stops a camera's pipeline. Unknown cameras are an error;
// deactivating an inactive camera is a no-op.
func (m *Manager) Deactivate(cameraID string) error {
	if _, ok := m.device.Camera(cameraID); !ok {
		return models.ErrUnknownCamera
	}

	e := m.entryFor(cameraID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p == nil || e.p.State() == models.StateStopped {
		return nil
	}
	e.p.Stop()
	return nil
}

// Swap replaces the active processor of a running camera.
func (m *Manager) Swap(cameraID, processorID string) error {
	if _, ok := m.device.Camera(cameraID); !ok {
		return models.ErrUnknownCamera
	}
	desc, err := m.registry.Get(processorID)
	if err != nil {
		return err
	}

	e := m.entryFor(cameraID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p == nil || e.p.State() != models.StateRunning {
		return models.ErrNotRunning
	}
	e.p.Swap(desc)
	return nil
}

// Pipeline returns the running pipeline for a camera, or nil.
func (m *Manager) Pipeline(cameraID string) *Pipeline {
	m.mu.RLock()
	e, ok := m.entries[cameraID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.p == nil || e.p.State() == models.StateStopped {
		return nil
	}
	return e.p
}

// ActiveCameras lists the ids of cameras with a running pipeline.
func (m *Manager) ActiveCameras() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := lo.Keys(m.entries)
	active := lo.Filter(ids, func(id string, _ int) bool {
		e := m.entries[id]
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.p != nil && e.p.State() == models.StateRunning
	})
	sort.Strings(active)
	return active
}

// Statuses reports every configured camera, running or not.
func (m *Manager) Statuses() []models.CameraStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.CameraStatus, 0, len(m.device.Cameras))
	for _, cam := range m.device.Cameras {
		if e, ok := m.entries[cam.ID]; ok {
			e.mu.Lock()
			p := e.p
			e.mu.Unlock()
			if p != nil && p.State() != models.StateStopped {
				out = append(out, p.Status())
				continue
			}
		}
		out = append(out, models.CameraStatus{
			CameraID: cam.ID,
			Label:    cam.Label,
			URL:      cam.URL,
			State:    models.StateStopped,
		})
	}
	return out
}

// Shutdown stops all pipelines, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	entries := lo.Values(m.entries)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.p != nil {
				e.p.Stop()
			}
		}(e)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Msg("All pipelines stopped")
	case <-ctx.Done():
		m.log.Warn().Msg("Shutdown timed out waiting for pipelines")
	}
}
