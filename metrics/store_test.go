package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"sdloader/boundary"
	"sdloader/handle"
)

func TestNewStore(t *testing.T) {
	if s := NewStore(DefaultStoreConfig(), time.Now()); s.cap != 100 {
		t.Errorf("default capacity = %d, want 100", s.cap)
	}
	if s := NewStore(StoreConfig{HistoryCapacity: 0}, time.Now()); s.cap != 100 {
		t.Errorf("zero capacity should default to 100, got %d", s.cap)
	}
	if s := NewStore(StoreConfig{HistoryCapacity: 7}, time.Now()); s.cap != 7 {
		t.Errorf("capacity = %d, want 7", s.cap)
	}
}

func TestStore_ObserveAndSummary(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), time.Now().Add(-time.Minute))

	s.Observe(boundary.Event{Kind: boundary.EventLoad, Handle: handle.Token(1<<32 | 1), Duration: time.Second})
	s.Observe(boundary.Event{Kind: boundary.EventGenerate, Width: 8, Height: 8, Bytes: 192, Duration: 2 * time.Second})
	s.Observe(boundary.Event{Kind: boundary.EventGenerate, Err: errors.New("engine failed"), Duration: 4 * time.Second})
	s.Observe(boundary.Event{Kind: boundary.EventRelease, Released: true})
	s.Observe(boundary.Event{Kind: boundary.EventRelease, Released: false})

	sum := s.Summary()
	if sum.TotalOperations != 5 || sum.TotalSuccess != 3 || sum.TotalErrors != 1 {
		t.Errorf("totals = %d/%d/%d, want 5/3/1", sum.TotalOperations, sum.TotalSuccess, sum.TotalErrors)
	}
	if sum.BytesReturned != 192 {
		t.Errorf("BytesReturned = %d, want 192", sum.BytesReturned)
	}
	if sum.LiveHandles != 0 {
		t.Errorf("LiveHandles = %d, want 0", sum.LiveHandles)
	}
	gen := sum.ByKind["generate"]
	if gen == nil || gen.Count != 2 || gen.SuccessRate != 50 || gen.AvgDuration != 3*time.Second {
		t.Errorf("generate stats = %+v", gen)
	}
	if rel := sum.ByKind["release"]; rel == nil || rel.SuccessRate != 100 {
		t.Errorf("release stats = %+v, noop counts as non-error", rel)
	}
	if sum.Uptime < time.Minute {
		t.Errorf("Uptime = %v", sum.Uptime)
	}

	recent := s.Recent(2)
	if len(recent) != 2 || recent[1].Status != StatusNoop || recent[0].Status != StatusSuccess {
		t.Errorf("Recent(2) = %+v", recent)
	}
	if recent := s.Recent(10); len(recent) != 5 || recent[2].ErrorMsg != "engine failed" {
		t.Errorf("Recent(10) = %+v", recent)
	}
	if len(s.Recent(0)) != 0 {
		t.Error("Recent(0) should be empty")
	}
}

func TestStore_RingBufferWraps(t *testing.T) {
	s := NewStore(StoreConfig{HistoryCapacity: 3}, time.Now())
	for i := 1; i <= 5; i++ {
		s.Record(OperationRecord{Kind: "generate", Status: StatusSuccess, Bytes: i})
	}

	recent := s.Recent(3)
	for i, want := range []int{3, 4, 5} {
		if recent[i].Bytes != want {
			t.Errorf("recent[%d].Bytes = %d, want %d", i, recent[i].Bytes, want)
		}
	}
	if s.Summary().TotalOperations != 5 {
		t.Error("totals should count records evicted from history")
	}
}

func TestStore_ConcurrentObserve(t *testing.T) {
	s := NewStore(StoreConfig{HistoryCapacity: 10}, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Observe(boundary.Event{Kind: boundary.EventGenerate, Bytes: 1})
			_ = s.Summary()
		}()
	}
	wg.Wait()

	if got := s.Summary().BytesReturned; got != 50 {
		t.Errorf("BytesReturned = %d, want 50", got)
	}
}
