package sched

import (
	"sync"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

// Scheduler hands out compute leases to camera pipelines. A fixed number of
// accelerated slots exists per process; when they run out, eligible cameras
// degrade to the general class instead of waiting. Acquire therefore never
// fails and never blocks.
type Scheduler struct {
	mu            sync.Mutex
	maxSlots      int
	inUse         int
	accelStride   int
	generalStride int
	log           zerolog.Logger
}

// Lease is one camera's grant. The stride tells the pipeline how many frames
// to admit for analysis (every Nth). Release is idempotent.
type Lease struct {
	Class  models.ComputeClass
	Stride int

	mu       sync.Mutex
	released bool
	sched    *Scheduler
}

func New(maxSlots, accelStride, generalStride int, logger zerolog.Logger) *Scheduler {
	if maxSlots < 0 {
		maxSlots = 0
	}
	if accelStride < 1 {
		accelStride = 1
	}
	if generalStride < 1 {
		generalStride = 1
	}
	return &Scheduler{
		maxSlots:      maxSlots,
		accelStride:   accelStride,
		generalStride: generalStride,
		log:           logger,
	}
}

// Acquire grants a lease for cam. Accelerated-eligible cameras get an
// accelerated slot if one is free, otherwise they fall back to general
// compute with the wider stride.
func (s *Scheduler) Acquire(cam models.CameraConfig) *Lease {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cam.AcceleratedEligible && s.inUse < s.maxSlots {
		s.inUse++
		s.log.Info().
			Str("camera_id", cam.ID).
			Int("slots_in_use", s.inUse).
			Int("slots_max", s.maxSlots).
			Msg("Granted accelerated compute slot")
		return &Lease{Class: models.ComputeAccelerated, Stride: s.accelStride, sched: s}
	}

	if cam.AcceleratedEligible {
		s.log.Warn().
			Str("camera_id", cam.ID).
			Int("slots_max", s.maxSlots).
			Msg("Accelerated slots exhausted, degrading to general compute")
	}
	return &Lease{Class: models.ComputeGeneral, Stride: s.generalStride, sched: s}
}

// Release returns the lease's slot to the pool. Safe to call more than once;
// only the first call has an effect.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true

	if l.Class != models.ComputeAccelerated {
		return
	}
	l.sched.mu.Lock()
	defer l.sched.mu.Unlock()
	if l.sched.inUse > 0 {
		l.sched.inUse--
	}
	l.sched.log.Info().Int("slots_in_use", l.sched.inUse).Msg("Released accelerated compute slot")
}

// SlotsInUse reports how many accelerated slots are currently held.
func (s *Scheduler) SlotsInUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// MaxSlots reports the configured accelerated slot count.
func (s *Scheduler) MaxSlots() int {
	return s.maxSlots
}
