package boundary

import (
	"time"

	"sdloader/handle"
	"sdloader/sdruntime"
)

// EventKind identifies a boundary operation.
type EventKind int

const (
	EventLoad EventKind = iota + 1
	EventGenerate
	EventRelease
)

func (k EventKind) String() string {
	switch k {
	case EventLoad:
		return "load"
	case EventGenerate:
		return "generate"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Event describes one completed boundary operation. Observers receive it
// synchronously after the operation has finished and all native memory for
// it has been released.
type Event struct {
	Kind   EventKind
	Handle handle.Token
	// ModelPath is set for EventLoad.
	ModelPath string
	// Request is the request as resolved against engine defaults. Set for
	// EventGenerate.
	Request sdruntime.GenerationRequest
	// Width, Height and Channels describe the returned image.
	Width    int
	Height   int
	Channels int
	Bytes    int
	Duration time.Duration
	// Released is false for an EventRelease that was a no-op.
	Released bool
	Err      error
}

// OK reports whether the operation succeeded.
func (e Event) OK() bool { return e.Err == nil }

// Observer receives boundary events. Implementations must not call back
// into the Loader.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}
