package capture

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/models"
)

// Source is a stream of frames from one camera. Open may be called again
// after a Read failure; Close releases whatever Open acquired.
type Source interface {
	Open(ctx context.Context) error
	Read() (*models.RawFrame, error)
	Close() error
}

// Options tunes the reconnect behavior of a capture unit.
type Options struct {
	BackoffMin           time.Duration
	BackoffMax           time.Duration
	JitterPct            int
	MaxConsecutiveErrors int
}

// Capture pulls frames from a source into a single-slot mailbox. The mailbox
// always holds the newest frame; an unread frame is silently replaced and
// counted as dropped. Consumers never see stale backlog after a stall.
type Capture struct {
	cameraID string
	source   Source
	opts     Options
	log      zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	frame   *models.RawFrame
	seq     int64
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}

	frames     atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64
}

func New(cameraID string, source Source, opts Options, logger zerolog.Logger) *Capture {
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.MaxConsecutiveErrors < 1 {
		opts.MaxConsecutiveErrors = 10
	}
	c := &Capture{
		cameraID: cameraID,
		source:   source,
		opts:     opts,
		log:      logger.With().Str("camera_id", cameraID).Logger(),
		done:     make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start launches the capture loop. It returns immediately; connection
// failures are retried inside the loop.
func (c *Capture) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.log.Info().Msg("Capture started")
}

func (c *Capture) run(ctx context.Context) {
	defer close(c.done)
	defer c.wakeAll()

	attempt := 0
	for ctx.Err() == nil {
		if err := c.source.Open(ctx); err != nil {
			delay := c.backoffDelay(attempt)
			attempt++
			c.reconnects.Add(1)
			c.log.Warn().
				Err(err).
				Dur("retry_in", delay).
				Int("attempt", attempt).
				Msg("Capture source open failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		c.log.Info().Msg("Capture source connected")

		c.readUntilBroken(ctx)
		c.source.Close()

		if ctx.Err() == nil {
			c.reconnects.Add(1)
			c.log.Warn().Msg("Capture source lost, reconnecting")
		}
	}
}

// readUntilBroken reads frames until the context ends or too many
// consecutive reads fail.
func (c *Capture) readUntilBroken(ctx context.Context) {
	errorCount := 0
	for ctx.Err() == nil {
		frame, err := c.source.Read()
		if err != nil {
			errorCount++
			if errorCount >= c.opts.MaxConsecutiveErrors {
				c.log.Error().
					Int("consecutive_errors", errorCount).
					Err(err).
					Msg("Too many consecutive read errors, forcing reconnect")
				return
			}
			continue
		}
		errorCount = 0
		c.publish(frame)
	}
}

func (c *Capture) publish(frame *models.RawFrame) {
	c.frames.Add(1)
	c.mu.Lock()
	if c.frame != nil {
		c.dropped.Add(1)
	}
	c.frame = frame
	c.seq++
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Next blocks until a frame newer than the caller's last one arrives, then
// takes it out of the mailbox. Returns nil after Stop.
func (c *Capture) Next(ctx context.Context) *models.RawFrame {
	// Wake the wait loop if the caller's context ends.
	stopWatch := context.AfterFunc(ctx, c.wakeAll)
	defer stopWatch()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.frame == nil && !c.stopped && ctx.Err() == nil {
		c.cond.Wait()
	}
	if c.stopped || ctx.Err() != nil {
		return nil
	}
	frame := c.frame
	c.frame = nil
	return frame
}

// Stop shuts the loop down and wakes any blocked Next callers. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.wakeAll()
	c.log.Info().
		Int64("frames", c.frames.Load()).
		Int64("dropped", c.dropped.Load()).
		Msg("Capture stopped")
}

func (c *Capture) wakeAll() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Stats reports counters accumulated since Start.
func (c *Capture) Stats() (frames, dropped, reconnects int64) {
	return c.frames.Load(), c.dropped.Load(), c.reconnects.Load()
}

// backoffDelay is jittered exponential backoff clamped to the configured
// min/max window.
func (c *Capture) backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt))) * time.Second

	if baseDelay < c.opts.BackoffMin {
		baseDelay = c.opts.BackoffMin
	}
	if baseDelay > c.opts.BackoffMax {
		baseDelay = c.opts.BackoffMax
	}

	jitterPct := float64(c.opts.JitterPct) / 100.0
	jitter := time.Duration(float64(baseDelay) * jitterPct * (rand.Float64()*2 - 1))

	return baseDelay + jitter
}
