package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/analysis"
	"vigil-worker-go/internal/capture"
	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/sched"
)

func testDevice() *config.DeviceFile {
	return &config.DeviceFile{
		DeviceID: "edge-test",
		Cameras: []models.CameraConfig{
			{ID: "cam-a", Label: "A", URL: "rtsp://example/a", AcceleratedEligible: true, InitialProcessor: "unit", Enabled: true},
			{ID: "cam-b", Label: "B", URL: "rtsp://example/b", InitialProcessor: "unit", Enabled: true},
		},
	}
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	registry := analysis.NewRegistry()
	desc, _ := scriptedDescriptor("unit", nil)
	registry.Register(desc)

	m := NewManager(
		testDevice(),
		registry,
		sched.New(1, 1, 7, zerolog.Nop()),
		func(cam models.CameraConfig) capture.Source {
			return &tickSource{cameraID: cam.ID, interval: time.Millisecond}
		},
		newChanPublisher(),
		&memSink{},
		testCaptureOpts(),
		Options{ForwardSkippedFrames: true, DegradedThreshold: 3, FPSWindowSize: 10},
		zerolog.Nop(),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func TestActivateUnknownCamera(t *testing.T) {
	m := testManager(t)
	if err := m.Activate(context.Background(), "cam-nope", "unit"); !errors.Is(err, models.ErrUnknownCamera) {
		t.Fatalf("err = %v, want ErrUnknownCamera", err)
	}
}

func TestActivateUnknownProcessor(t *testing.T) {
	m := testManager(t)
	if err := m.Activate(context.Background(), "cam-a", "nope"); !errors.Is(err, models.ErrUnknownProcessor) {
		t.Fatalf("err = %v, want ErrUnknownProcessor", err)
	}
	if p := m.Pipeline("cam-a"); p != nil {
		t.Error("failed activate must not leave a pipeline behind")
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	m := testManager(t)
	if err := m.Activate(context.Background(), "cam-a", "unit"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	first := m.Pipeline("cam-a")
	if err := m.Activate(context.Background(), "cam-a", "unit"); err != nil {
		t.Fatalf("second Activate: %v", err)
	}
	if m.Pipeline("cam-a") != first {
		t.Error("second Activate replaced the running pipeline")
	}
	if got := m.ActiveCameras(); len(got) != 1 || got[0] != "cam-a" {
		t.Errorf("ActiveCameras = %v, want [cam-a]", got)
	}
}

func TestActivateDefaultsToConfiguredProcessor(t *testing.T) {
	m := testManager(t)
	if err := m.Activate(context.Background(), "cam-a", ""); err != nil {
		t.Fatalf("Activate with empty processor: %v", err)
	}
	if p := m.Pipeline("cam-a"); p == nil || p.Status().Processor != "unit" {
		t.Error("expected the device-file processor to be used")
	}
}

func TestDeactivateInactiveIsNoop(t *testing.T) {
	m := testManager(t)
	if err := m.Deactivate("cam-a"); err != nil {
		t.Fatalf("Deactivate inactive: %v", err)
	}
	if err := m.Deactivate("cam-nope"); !errors.Is(err, models.ErrUnknownCamera) {
		t.Fatalf("err = %v, want ErrUnknownCamera", err)
	}
}

func TestDeactivateThenReactivate(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	if err := m.Activate(ctx, "cam-a", "unit"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.Deactivate("cam-a"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if p := m.Pipeline("cam-a"); p != nil {
		t.Fatal("pipeline still reported after Deactivate")
	}
	if err := m.Activate(ctx, "cam-a", "unit"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
}

func TestSwapRequiresRunningPipeline(t *testing.T) {
	m := testManager(t)
	if err := m.Swap("cam-a", "unit"); !errors.Is(err, models.ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
	if err := m.Swap("cam-nope", "unit"); !errors.Is(err, models.ErrUnknownCamera) {
		t.Fatalf("err = %v, want ErrUnknownCamera", err)
	}

	if err := m.Activate(context.Background(), "cam-a", "unit"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.Swap("cam-a", "nope"); !errors.Is(err, models.ErrUnknownProcessor) {
		t.Fatalf("err = %v, want ErrUnknownProcessor", err)
	}
	if err := m.Swap("cam-a", "unit"); err != nil {
		t.Fatalf("Swap: %v", err)
	}
}

func TestStatusesCoverAllConfiguredCameras(t *testing.T) {
	m := testManager(t)
	if err := m.Activate(context.Background(), "cam-a", "unit"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	statuses := m.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	byID := map[string]models.CameraStatus{}
	for _, s := range statuses {
		byID[s.CameraID] = s
	}
	if byID["cam-a"].State != models.StateRunning {
		t.Errorf("cam-a state = %s, want running", byID["cam-a"].State)
	}
	if byID["cam-a"].ComputeClass != models.ComputeAccelerated {
		t.Errorf("cam-a compute class = %s, want accelerated", byID["cam-a"].ComputeClass)
	}
	if byID["cam-b"].State != models.StateStopped {
		t.Errorf("cam-b state = %s, want stopped", byID["cam-b"].State)
	}
}

func TestConcurrentOpsOnSameCameraSerialize(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Activate(ctx, "cam-a", "unit")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Deactivate("cam-a")
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the camera must land in a coherent
	// state and still accept a plain activate.
	if err := m.Activate(ctx, "cam-a", "unit"); err != nil {
		t.Fatalf("Activate after churn: %v", err)
	}
	if p := m.Pipeline("cam-a"); p == nil || p.State() != models.StateRunning {
		t.Fatal("cam-a not running after churn")
	}
}

func TestShutdownStopsEverything(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	m.Activate(ctx, "cam-a", "unit")
	m.Activate(ctx, "cam-b", "unit")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	m.Shutdown(shutdownCtx)

	if got := m.ActiveCameras(); len(got) != 0 {
		t.Errorf("ActiveCameras after Shutdown = %v, want none", got)
	}
}
