package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("vigil-worker"),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) Subscribe(subject string, handler func([]byte)) (*nats.Subscription, error) {
	return s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}

// Recorder publishes analysis records to a per-camera subject so downstream
// consumers can subscribe to records.<camera_id> or records.> wildcards.
// It plugs into the pipeline as a record sink.
type Recorder struct {
	svc     *Service
	subject string
}

func NewRecorder(svc *Service, subjectPrefix string) *Recorder {
	return &Recorder{svc: svc, subject: subjectPrefix}
}

func (r *Recorder) Append(cameraID string, records []models.Record) {
	if r.svc == nil || !r.svc.IsConnected() {
		return
	}
	subject := fmt.Sprintf("%s.%s", r.subject, cameraID)
	for i := range records {
		if err := r.svc.Publish(subject, &records[i]); err != nil {
			log.Warn().Str("camera_id", cameraID).Err(err).Msg("Failed to publish record")
			return
		}
	}
}

// Forget is a no-op: published records are fire-and-forget, nothing is
// retained per camera.
func (r *Recorder) Forget(cameraID string) {}
