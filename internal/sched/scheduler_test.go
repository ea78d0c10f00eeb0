package sched

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

func eligibleCam(id string) models.CameraConfig {
	return models.CameraConfig{ID: id, URL: "rtsp://example/" + id, AcceleratedEligible: true}
}

func TestAcquireDegradesWhenSlotsExhausted(t *testing.T) {
	s := New(2, 1, 7, zerolog.Nop())

	a := s.Acquire(eligibleCam("cam-a"))
	b := s.Acquire(eligibleCam("cam-b"))
	c := s.Acquire(eligibleCam("cam-c"))

	if a.Class != models.ComputeAccelerated || a.Stride != 1 {
		t.Errorf("cam-a lease = %s/%d, want accelerated/1", a.Class, a.Stride)
	}
	if b.Class != models.ComputeAccelerated || b.Stride != 1 {
		t.Errorf("cam-b lease = %s/%d, want accelerated/1", b.Class, b.Stride)
	}
	if c.Class != models.ComputeGeneral || c.Stride != 7 {
		t.Errorf("cam-c lease = %s/%d, want general/7", c.Class, c.Stride)
	}
	if s.SlotsInUse() != 2 {
		t.Errorf("SlotsInUse = %d, want 2", s.SlotsInUse())
	}
}

func TestIneligibleCameraNeverAccelerated(t *testing.T) {
	s := New(2, 1, 7, zerolog.Nop())
	lease := s.Acquire(models.CameraConfig{ID: "cam-cpu"})
	if lease.Class != models.ComputeGeneral {
		t.Errorf("Class = %s, want general", lease.Class)
	}
	if s.SlotsInUse() != 0 {
		t.Errorf("SlotsInUse = %d, want 0", s.SlotsInUse())
	}
}

func TestReleaseFreesSlotForNextAcquire(t *testing.T) {
	s := New(1, 1, 7, zerolog.Nop())

	a := s.Acquire(eligibleCam("cam-a"))
	b := s.Acquire(eligibleCam("cam-b"))
	if b.Class != models.ComputeGeneral {
		t.Fatalf("cam-b should have been degraded while cam-a holds the slot")
	}

	a.Release()
	c := s.Acquire(eligibleCam("cam-c"))
	if c.Class != models.ComputeAccelerated {
		t.Errorf("cam-c lease = %s, want accelerated after release", c.Class)
	}
}

func TestDoubleReleaseFreesOneSlot(t *testing.T) {
	s := New(2, 1, 7, zerolog.Nop())

	a := s.Acquire(eligibleCam("cam-a"))
	s.Acquire(eligibleCam("cam-b"))

	a.Release()
	a.Release()
	if got := s.SlotsInUse(); got != 1 {
		t.Errorf("SlotsInUse after double release = %d, want 1", got)
	}
}

func TestConcurrentAcquiresNeverOversubscribe(t *testing.T) {
	const max = 2
	s := New(max, 1, 7, zerolog.Nop())

	var wg sync.WaitGroup
	leases := make([]*Lease, 16)
	for i := range leases {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leases[i] = s.Acquire(eligibleCam("cam"))
		}(i)
	}
	wg.Wait()

	accel := 0
	for _, l := range leases {
		if l.Class == models.ComputeAccelerated {
			accel++
		}
	}
	if accel != max {
		t.Errorf("%d accelerated leases granted, want %d", accel, max)
	}
	if s.SlotsInUse() != max {
		t.Errorf("SlotsInUse = %d, want %d", s.SlotsInUse(), max)
	}

	for _, l := range leases {
		l.Release()
	}
	if s.SlotsInUse() != 0 {
		t.Errorf("SlotsInUse after releasing all = %d, want 0", s.SlotsInUse())
	}
}
