package service

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
	"github.com/noah-isme/sma-portal/pkg/jobs"
)

const pingTimeout = 2 * time.Second

// Pinger checks that a dependency answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type QueueReporter interface {
	QueueStats() jobs.Stats
}

// MonitorComponent names a dependency checked by the monitor. Optional components do not fail readiness.
type MonitorComponent struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

// MonitorServiceParams groups constructor dependencies.
type MonitorServiceParams struct {
	Components []MonitorComponent
	Sessions   activeSessionCounter
	Queues     []QueueReporter
	Metrics    *MetricsService
	Logger     *zap.Logger
}

// MonitorService reports dependency health and runtime statistics.
type MonitorService struct {
	components []MonitorComponent
	sessions   activeSessionCounter
	queues     []QueueReporter
	metrics    *MetricsService
	logger     *zap.Logger
	started    time.Time
	now        func() time.Time
}

// NewMonitorService constructs a MonitorService.
func NewMonitorService(params MonitorServiceParams) *MonitorService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorService{
		components: params.Components,
		sessions:   params.Sessions,
		queues:     params.Queues,
		metrics:    params.Metrics,
		logger:     logger,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Status gathers the full system report.
func (s *MonitorService) Status(ctx context.Context) models.SystemStatus {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := models.SystemStatus{
		Metrics:       s.metrics.Snapshot(),
		Components:    s.Check(ctx),
		HeapAllocMB:   bytesToMB(mem.HeapAlloc),
		SysMB:         bytesToMB(mem.Sys),
		NumGC:         mem.NumGC,
		UptimeSeconds: int64(s.now().Sub(s.started).Seconds()),
		GoVersion:     runtime.Version(),
		Queues:        make([]models.QueueStatus, 0, len(s.queues)),
	}
	if s.sessions != nil {
		active, err := s.sessions.CountActive(ctx, s.now().UTC())
		if err != nil {
			s.logger.Warn("active session count failed", zap.Error(err))
		}
		status.ActiveUsers = active
	}
	for _, q := range s.queues {
		stats := q.QueueStats()
		status.Queues = append(status.Queues, models.QueueStatus{
			Name:      stats.Name,
			Pending:   stats.Pending,
			Processed: stats.Processed,
			Failed:    stats.Failed,
			Running:   stats.Running,
		})
	}
	return status
}

// Check pings every component with a short timeout.
func (s *MonitorService) Check(ctx context.Context) []models.ComponentHealth {
	results := make([]models.ComponentHealth, 0, len(s.components))
	for _, component := range s.components {
		results = append(results, s.ping(ctx, component))
	}
	return results
}

// Ready returns an error naming the first required component that is down.
func (s *MonitorService) Ready(ctx context.Context) error {
	for _, component := range s.components {
		if component.Optional {
			continue
		}
		if health := s.ping(ctx, component); !health.Healthy {
			return appErrors.Clone(appErrors.ErrServiceUnavailable, component.Name+" is unavailable")
		}
	}
	return nil
}

func (s *MonitorService) ping(ctx context.Context, component MonitorComponent) models.ComponentHealth {
	health := models.ComponentHealth{Name: component.Name}
	if component.Pinger == nil {
		health.Error = "not configured"
		return health
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := component.Pinger.PingContext(pingCtx)
	health.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		health.Error = err.Error()
		s.logger.Warn("component unhealthy", zap.String("component", component.Name), zap.Error(err))
		return health
	}
	health.Healthy = true
	return health
}

func bytesToMB(b uint64) float64 {
	return float64(b) / (1024 * 1024)
}
