package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

// Hub fans processed frames out to viewer subscriptions. The subscription
// count is capped process-wide; past the cap Subscribe refuses without
// touching any state. Publishing never blocks: a viewer that cannot keep up
// loses its oldest queued frame, not the producer's time.
type Hub struct {
	mu        sync.RWMutex
	max       int
	queueSize int
	subs      map[string]*Subscription
	byCamera  map[string]map[string]*Subscription
	log       zerolog.Logger
}

// Subscription is one viewer's bounded frame queue.
type Subscription struct {
	ID       string
	CameraID string
	C        chan *models.ProcessedFrame

	hub   *Hub
	once  sync.Once
	drops int64
	dmu   sync.Mutex
}

func NewHub(maxSubscriptions, queueSize int, logger zerolog.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		max:       maxSubscriptions,
		queueSize: queueSize,
		log:       logger,
		subs:      make(map[string]*Subscription),
		byCamera:  make(map[string]map[string]*Subscription),
	}
}

// Subscribe registers a viewer for a camera's frames.
func (h *Hub) Subscribe(cameraID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) >= h.max {
		h.log.Warn().
			Str("camera_id", cameraID).
			Int("max_streams", h.max).
			Msg("Viewer refused, stream capacity reached")
		return nil, models.ErrCapacityExceeded
	}

	sub := &Subscription{
		ID:       uuid.NewString(),
		CameraID: cameraID,
		C:        make(chan *models.ProcessedFrame, h.queueSize),
		hub:      h,
	}
	h.subs[sub.ID] = sub
	if h.byCamera[cameraID] == nil {
		h.byCamera[cameraID] = make(map[string]*Subscription)
	}
	h.byCamera[cameraID][sub.ID] = sub

	h.log.Info().
		Str("camera_id", cameraID).
		Str("subscription_id", sub.ID).
		Int("active_streams", len(h.subs)).
		Msg("Viewer subscribed")
	return sub, nil
}

// Publish delivers a frame to every subscriber of its camera. Full queues
// shed their oldest frame to make room for the new one.
func (h *Hub) Publish(frame *models.ProcessedFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.byCamera[frame.CameraID] {
		select {
		case sub.C <- frame:
		default:
			select {
			case <-sub.C:
				sub.dmu.Lock()
				sub.drops++
				sub.dmu.Unlock()
			default:
			}
			select {
			case sub.C <- frame:
			default:
			}
		}
	}
}

// Unsubscribe removes the viewer and closes its channel. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs, s.ID)
		if cams := h.byCamera[s.CameraID]; cams != nil {
			delete(cams, s.ID)
			if len(cams) == 0 {
				delete(h.byCamera, s.CameraID)
			}
		}
		remaining := len(h.subs)
		h.mu.Unlock()

		close(s.C)
		h.log.Info().
			Str("camera_id", s.CameraID).
			Str("subscription_id", s.ID).
			Int64("dropped_frames", s.Drops()).
			Int("active_streams", remaining).
			Msg("Viewer unsubscribed")
	})
}

// Drops reports how many frames this viewer lost to backpressure.
func (s *Subscription) Drops() int64 {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.drops
}

// ActiveStreams reports the current subscription count.
func (h *Hub) ActiveStreams() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
