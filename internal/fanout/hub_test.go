package fanout

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

func frame(cameraID string, id int64) *models.ProcessedFrame {
	return &models.ProcessedFrame{CameraID: cameraID, FrameID: id, Timestamp: time.Now()}
}

func TestSubscribeRefusesPastCapacity(t *testing.T) {
	h := NewHub(2, 4, zerolog.Nop())

	a, err := h.Subscribe("cam-a")
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if _, err := h.Subscribe("cam-a"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	if _, err := h.Subscribe("cam-b"); !errors.Is(err, models.ErrCapacityExceeded) {
		t.Fatalf("third Subscribe err = %v, want ErrCapacityExceeded", err)
	}
	if h.ActiveStreams() != 2 {
		t.Errorf("ActiveStreams = %d, want 2 (refusal must not change state)", h.ActiveStreams())
	}

	// Capacity frees up after an unsubscribe.
	a.Unsubscribe()
	if _, err := h.Subscribe("cam-b"); err != nil {
		t.Fatalf("Subscribe after Unsubscribe: %v", err)
	}
}

func TestPublishRoutesByCamera(t *testing.T) {
	h := NewHub(4, 4, zerolog.Nop())
	subA, _ := h.Subscribe("cam-a")
	subB, _ := h.Subscribe("cam-b")

	h.Publish(frame("cam-a", 1))

	select {
	case f := <-subA.C:
		if f.FrameID != 1 {
			t.Errorf("FrameID = %d, want 1", f.FrameID)
		}
	default:
		t.Fatal("cam-a subscriber got no frame")
	}
	select {
	case f := <-subB.C:
		t.Fatalf("cam-b subscriber got frame %d for cam-a", f.FrameID)
	default:
	}
}

func TestSlowViewerDropsOldestNotProducer(t *testing.T) {
	h := NewHub(4, 2, zerolog.Nop())
	sub, _ := h.Subscribe("cam-a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 100; i++ {
			h.Publish(frame("cam-a", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow viewer")
	}

	// The queue holds the newest frames; the oldest were shed.
	f := <-sub.C
	if f.FrameID == 1 {
		t.Error("oldest frame survived, expected it to be dropped first")
	}
	if sub.Drops() == 0 {
		t.Error("expected drop counter to advance for a slow viewer")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	h := NewHub(2, 2, zerolog.Nop())
	sub, _ := h.Subscribe("cam-a")
	sub.Unsubscribe()
	sub.Unsubscribe()
	if h.ActiveStreams() != 0 {
		t.Errorf("ActiveStreams = %d, want 0", h.ActiveStreams())
	}

	// Channel is closed, a reader drains immediately.
	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after Unsubscribe")
	}
}

func TestPublishAfterUnsubscribeIsNoop(t *testing.T) {
	h := NewHub(2, 2, zerolog.Nop())
	sub, _ := h.Subscribe("cam-a")
	sub.Unsubscribe()
	h.Publish(frame("cam-a", 1)) // must not panic on the closed channel
}
