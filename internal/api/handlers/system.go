package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/fanout"
	"vigil-worker-go/internal/pipeline"
	"vigil-worker-go/internal/sched"
)

type SystemHandler struct {
	cfg       *config.Config
	manager   *pipeline.Manager
	scheduler *sched.Scheduler
	hub       *fanout.Hub
	startedAt time.Time
}

func NewSystemHandler(cfg *config.Config, manager *pipeline.Manager, scheduler *sched.Scheduler, hub *fanout.Hub) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		manager:   manager,
		scheduler: scheduler,
		hub:       hub,
		startedAt: time.Now(),
	}
}

type SystemStatsResponse struct {
	WorkerID         string   `json:"worker_id"`
	UptimeSeconds    float64  `json:"uptime_seconds"`
	ActiveCameras    []string `json:"active_cameras"`
	AcceleratedInUse int      `json:"accelerated_slots_in_use"`
	AcceleratedTotal int      `json:"accelerated_slots_total"`
	ActiveStreams    int      `json:"active_streams"`
	MaxStreams       int      `json:"max_streams"`
	Goroutines       int      `json:"goroutines"`
	HeapAllocBytes   uint64   `json:"heap_alloc_bytes"`
	NumGC            uint32   `json:"num_gc"`
}

// GetStats reports process-level runtime stats.
func (h *SystemHandler) GetStats(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, SystemStatsResponse{
		WorkerID:         h.cfg.WorkerID,
		UptimeSeconds:    time.Since(h.startedAt).Seconds(),
		ActiveCameras:    h.manager.ActiveCameras(),
		AcceleratedInUse: h.scheduler.SlotsInUse(),
		AcceleratedTotal: h.scheduler.MaxSlots(),
		ActiveStreams:    h.hub.ActiveStreams(),
		MaxStreams:       h.cfg.MaxConcurrentStreams,
		Goroutines:       runtime.NumGoroutine(),
		HeapAllocBytes:   mem.HeapAlloc,
		NumGC:            mem.NumGC,
	})
}
