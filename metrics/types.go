// Package metrics records boundary activity: an in-memory store of recent
// operations for summaries, and Prometheus instruments for export.
package metrics

import "time"

// OperationRecord is one completed boundary operation.
type OperationRecord struct {
	Kind     string        `json:"kind"`
	Handle   string        `json:"handle"`
	Status   string        `json:"status"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Bytes    int           `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration"`
	ErrorMsg string        `json:"error_msg,omitempty"`
	At       time.Time     `json:"at"`
}

// KindMetrics aggregates records of one kind.
type KindMetrics struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Summary aggregates all records seen by a Store.
type Summary struct {
	TotalOperations int64                   `json:"total_operations"`
	TotalSuccess    int64                   `json:"total_success"`
	TotalErrors     int64                   `json:"total_errors"`
	BytesReturned   int64                   `json:"bytes_returned"`
	LiveHandles     int64                   `json:"live_handles"`
	ByKind          map[string]*KindMetrics `json:"by_kind"`
	Uptime          time.Duration           `json:"uptime"`
}

// Record statuses. A release of an unknown or already released token is
// recorded as StatusNoop.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusNoop    = "noop"
)
