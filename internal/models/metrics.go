package models

import "time"

// SystemMetrics is a JSON-friendly metrics snapshot.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CellMutations            uint64    `json:"cell_mutations"`
	RoutinesOpen             int       `json:"routines_open"`
	TeacherConflicts         int       `json:"teacher_conflicts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
