package capture

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

// fakeSource produces numbered frames, optionally failing opens or reads.
type fakeSource struct {
	openErrs  atomic.Int32 // number of Opens that should fail
	readDelay time.Duration
	failReads atomic.Bool

	opens  atomic.Int32
	frames atomic.Int64
}

func (f *fakeSource) Open(ctx context.Context) error {
	f.opens.Add(1)
	if f.openErrs.Load() > 0 {
		f.openErrs.Add(-1)
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeSource) Read() (*models.RawFrame, error) {
	if f.failReads.Load() {
		return nil, errors.New("read failed")
	}
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	id := f.frames.Add(1)
	return &models.RawFrame{CameraID: "cam-test", FrameID: id, Timestamp: time.Now()}, nil
}

func (f *fakeSource) Close() error { return nil }

func testOptions() Options {
	return Options{
		BackoffMin:           time.Millisecond,
		BackoffMax:           5 * time.Millisecond,
		JitterPct:            0,
		MaxConsecutiveErrors: 3,
	}
}

func TestNextDeliversFrames(t *testing.T) {
	src := &fakeSource{readDelay: time.Millisecond}
	c := New("cam-test", src, testOptions(), zerolog.Nop())
	c.Start(context.Background())
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := c.Next(ctx)
	if first == nil {
		t.Fatal("Next returned nil while running")
	}
	second := c.Next(ctx)
	if second == nil {
		t.Fatal("Next returned nil while running")
	}
	if second.FrameID <= first.FrameID {
		t.Errorf("frames out of order: %d then %d", first.FrameID, second.FrameID)
	}
}

func TestMailboxKeepsOnlyLatest(t *testing.T) {
	c := New("cam-test", &fakeSource{}, testOptions(), zerolog.Nop())

	// Publish directly so the test controls timing.
	for i := int64(1); i <= 5; i++ {
		c.publish(&models.RawFrame{FrameID: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame := c.Next(ctx)
	if frame == nil || frame.FrameID != 5 {
		t.Fatalf("Next = %+v, want frame 5", frame)
	}

	_, dropped, _ := c.Stats()
	if dropped != 4 {
		t.Errorf("dropped = %d, want 4", dropped)
	}
}

func TestStopWakesBlockedNext(t *testing.T) {
	src := &fakeSource{}
	src.failReads.Store(true)
	src.openErrs.Store(1000) // never connects
	c := New("cam-test", src, testOptions(), zerolog.Nop())
	c.Start(context.Background())

	got := make(chan *models.RawFrame, 1)
	go func() {
		got <- c.Next(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	c.Stop()

	select {
	case frame := <-got:
		if frame != nil {
			t.Errorf("Next after Stop = %+v, want nil", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New("cam-test", &fakeSource{readDelay: time.Millisecond}, testOptions(), zerolog.Nop())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}

func TestReconnectsAfterOpenFailures(t *testing.T) {
	src := &fakeSource{readDelay: time.Millisecond}
	src.openErrs.Store(2)
	c := New("cam-test", src, testOptions(), zerolog.Nop())
	c.Start(context.Background())
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if frame := c.Next(ctx); frame == nil {
		t.Fatal("no frame delivered after open retries")
	}

	_, _, reconnects := c.Stats()
	if reconnects < 2 {
		t.Errorf("reconnects = %d, want >= 2", reconnects)
	}
	if src.opens.Load() < 3 {
		t.Errorf("opens = %d, want >= 3", src.opens.Load())
	}
}

func TestReadErrorsForceReconnect(t *testing.T) {
	src := &fakeSource{readDelay: time.Millisecond}
	src.failReads.Store(true)
	c := New("cam-test", src, testOptions(), zerolog.Nop())
	c.Start(context.Background())
	defer c.Stop()

	// Let the loop hit the consecutive error limit, then heal the source.
	time.Sleep(20 * time.Millisecond)
	src.failReads.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if frame := c.Next(ctx); frame == nil {
		t.Fatal("no frame delivered after source recovered")
	}
	_, _, reconnects := c.Stats()
	if reconnects == 0 {
		t.Error("expected at least one reconnect after read failures")
	}
}

func TestBackoffDelayClamped(t *testing.T) {
	c := New("cam-test", &fakeSource{}, Options{
		BackoffMin:           time.Second,
		BackoffMax:           8 * time.Second,
		JitterPct:            0,
		MaxConsecutiveErrors: 3,
	}, zerolog.Nop())

	if d := c.backoffDelay(0); d != time.Second {
		t.Errorf("backoffDelay(0) = %v, want 1s", d)
	}
	if d := c.backoffDelay(2); d != 4*time.Second {
		t.Errorf("backoffDelay(2) = %v, want 4s", d)
	}
	if d := c.backoffDelay(10); d != 8*time.Second {
		t.Errorf("backoffDelay(10) = %v, want 8s (clamped)", d)
	}
}

// logBuffer is a goroutine-safe sink for captured log output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLifecycleEventsCarryCameraContext(t *testing.T) {
	buf := &logBuffer{}
	logger := zerolog.New(buf)

	c := New("cam-ctx", &fakeSource{readDelay: time.Millisecond}, testOptions(), logger)
	c.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if frame := c.Next(ctx); frame == nil {
		t.Fatal("no frame delivered")
	}
	c.Stop()

	out := buf.String()
	if !strings.Contains(out, "Capture started") || !strings.Contains(out, "Capture stopped") {
		t.Fatalf("lifecycle events missing from log output:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.Contains(line, `"camera_id":"cam-ctx"`) {
			t.Errorf("log line lacks camera context: %s", line)
		}
	}
}
