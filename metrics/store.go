package metrics

import (
	"sync"
	"time"

	"sdloader/boundary"
)

// Store keeps the most recent operation records in a ring buffer along
// with running totals. It implements boundary.Observer.
//
//	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
//	loader := boundary.NewLoader(engine, boundary.Options{Observer: store})
type Store struct {
	mu sync.RWMutex

	history []OperationRecord
	cap     int
	head    int
	size    int

	total   int64
	success int64
	errors  int64
	bytes   int64
	live    int64
	byKind  map[string]*kindStats

	startTime time.Time
}

type kindStats struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
}

// StoreConfig configures a Store.
type StoreConfig struct {
	HistoryCapacity int
}

// DefaultStoreConfig keeps the last 100 records.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 100}
}

// NewStore creates a Store. startTime anchors Uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}
	return &Store{
		history:   make([]OperationRecord, capacity),
		cap:       capacity,
		byKind:    make(map[string]*kindStats),
		startTime: startTime,
	}
}

// Observe implements boundary.Observer.
func (s *Store) Observe(e boundary.Event) {
	rec := OperationRecord{
		Kind:     e.Kind.String(),
		Handle:   e.Handle.String(),
		Status:   StatusSuccess,
		Width:    e.Width,
		Height:   e.Height,
		Bytes:    e.Bytes,
		Duration: e.Duration,
		At:       time.Now(),
	}
	if e.Err != nil {
		rec.Status = StatusError
		rec.ErrorMsg = e.Err.Error()
	} else if e.Kind == boundary.EventRelease && !e.Released {
		rec.Status = StatusNoop
	}
	s.Record(rec)
}

// Record adds one record and updates the totals.
func (s *Store) Record(rec OperationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.total++
	switch rec.Status {
	case StatusSuccess:
		s.success++
	case StatusError:
		s.errors++
	}
	s.bytes += int64(rec.Bytes)

	if rec.Status == StatusSuccess {
		switch rec.Kind {
		case boundary.EventLoad.String():
			s.live++
		case boundary.EventRelease.String():
			s.live--
		}
	}

	ks, ok := s.byKind[rec.Kind]
	if !ok {
		ks = &kindStats{}
		s.byKind[rec.Kind] = ks
	}
	ks.count++
	if rec.Status != StatusError {
		ks.successCount++
	}
	ks.totalDuration += rec.Duration
}

// Summary returns aggregated statistics.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Summary{
		TotalOperations: s.total,
		TotalSuccess:    s.success,
		TotalErrors:     s.errors,
		BytesReturned:   s.bytes,
		LiveHandles:     s.live,
		ByKind:          make(map[string]*KindMetrics, len(s.byKind)),
		Uptime:          time.Since(s.startTime),
	}
	for kind, ks := range s.byKind {
		m := &KindMetrics{Count: ks.count}
		if ks.count > 0 {
			m.SuccessRate = float64(ks.successCount) / float64(ks.count) * 100
			m.AvgDuration = ks.totalDuration / time.Duration(ks.count)
		}
		out.ByKind[kind] = m
	}
	return out
}

// Recent returns up to limit records, oldest first.
func (s *Store) Recent(limit int) []OperationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []OperationRecord{}
	}
	if limit > s.size {
		limit = s.size
	}
	out := make([]OperationRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[(s.head-limit+i+s.cap)%s.cap]
	}
	return out
}

var _ boundary.Observer = (*Store)(nil)
