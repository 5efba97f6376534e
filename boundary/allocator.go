package boundary

import (
	"fmt"
	"runtime"
)

// Allocator provides host-owned output buffers.
type Allocator interface {
	// Alloc returns a zeroed buffer of exactly n bytes.
	Alloc(n int) ([]byte, error)
}

// HeapAllocator allocates from the Go heap. A positive MaxBytes caps the
// size of a single buffer.
type HeapAllocator struct {
	MaxBytes int
}

// Alloc implements Allocator. Requests for non-positive sizes, requests
// over MaxBytes, and runtime allocation panics all report
// ErrHostAllocation.
func (a HeapAllocator) Alloc(n int) (buf []byte, err error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrHostAllocation, n)
	}
	if a.MaxBytes > 0 && n > a.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrHostAllocation, n, a.MaxBytes)
	}

	defer func() {
		if r := recover(); r != nil {
			// makeslice panics with a runtime.Error for lengths the heap
			// cannot satisfy. Anything else is not ours to swallow.
			if _, ok := r.(runtime.Error); !ok {
				panic(r)
			}
			buf, err = nil, fmt.Errorf("%w: %v", ErrHostAllocation, r)
		}
	}()
	return make([]byte, n), nil
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(n int) ([]byte, error)

// Alloc implements Allocator.
func (f AllocatorFunc) Alloc(n int) ([]byte, error) { return f(n) }
