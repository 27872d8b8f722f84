package models

import "time"

// SystemMetrics represents instrumentation counters captured by the metrics service.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// ComponentHealth is the reachability of one dependency.
type ComponentHealth struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// SystemStatus is the system monitor report shown in the settings panel.
type SystemStatus struct {
	Metrics       SystemMetrics     `json:"metrics"`
	Components    []ComponentHealth `json:"components"`
	HeapAllocMB   float64           `json:"heap_alloc_mb"`
	SysMB         float64           `json:"sys_mb"`
	NumGC         uint32            `json:"num_gc"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	GoVersion     string            `json:"go_version"`
	ActiveUsers   int               `json:"active_sessions"`
	Queues        []QueueStatus     `json:"queues"`
}

// QueueStatus summarises one background worker queue.
type QueueStatus struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Running   bool   `json:"running"`
}
