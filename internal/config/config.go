package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string
	DeviceFile  string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// NATS (alert events + record stream)
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string
	RecordsSubject     string

	// Compute scheduler
	MaxAcceleratedSlots int
	AcceleratedStride   int
	GeneralStride       int

	// Capture
	OutputWidth          int
	OutputHeight         int
	ReconnectBackoffMin  time.Duration
	ReconnectBackoffMax  time.Duration
	ReconnectJitterPct   int
	MaxConsecutiveErrors int

	// Pipeline
	ForwardSkippedFrames bool
	DegradedThreshold    int
	FPSWindowSize        int

	// Streaming fan-out
	MaxConcurrentStreams int
	ViewerQueueSize      int
	OutputQuality        int

	// Alerts engine
	AlertsEvalInterval time.Duration
	AlertsDebounce     time.Duration
	AlertsRetention    int

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "edge-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DeviceFile:  getEnv("DEVICE_FILE", "device.yaml"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "alerts"),
		RecordsSubject:     getEnv("RECORDS_SUBJECT", "records"),

		// Compute scheduler. Strides and slot counts are deployment tuning
		// values, not algorithmic constants.
		MaxAcceleratedSlots: getEnvInt("MAX_ACCELERATED_SLOTS", 2),
		AcceleratedStride:   getEnvInt("ACCELERATED_STRIDE", 1),
		GeneralStride:       getEnvInt("GENERAL_STRIDE", 7),

		// Capture
		OutputWidth:          getEnvInt("OUTPUT_WIDTH", 1280),
		OutputHeight:         getEnvInt("OUTPUT_HEIGHT", 720),
		ReconnectBackoffMin:  getEnvDuration("RECONNECT_BACKOFF_MIN", 1*time.Second),
		ReconnectBackoffMax:  getEnvDuration("RECONNECT_BACKOFF_MAX", 30*time.Second),
		ReconnectJitterPct:   getEnvInt("RECONNECT_JITTER_PCT", 20),
		MaxConsecutiveErrors: getEnvInt("MAX_CONSECUTIVE_ERRORS", 10),

		// Pipeline
		ForwardSkippedFrames: getEnvBool("FORWARD_SKIPPED_FRAMES", true),
		DegradedThreshold:    getEnvInt("DEGRADED_THRESHOLD", 3),
		FPSWindowSize:        getEnvInt("FPS_WINDOW_SIZE", 30),

		// Streaming fan-out
		MaxConcurrentStreams: getEnvInt("MAX_CONCURRENT_STREAMS", 4),
		ViewerQueueSize:      getEnvInt("VIEWER_QUEUE_SIZE", 8),
		OutputQuality:        getEnvInt("OUTPUT_QUALITY", 75),

		// Alerts engine
		AlertsEvalInterval: getEnvDuration("ALERTS_EVAL_INTERVAL", 3*time.Second),
		AlertsDebounce:     getEnvDuration("ALERTS_DEBOUNCE", 10*time.Second),
		AlertsRetention:    getEnvInt("ALERTS_RETENTION", 100),

		// Graceful shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
