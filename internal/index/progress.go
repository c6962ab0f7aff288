package index

import "github.com/google/uuid"

// Phase identifies where a build currently is.
type Phase string

const (
	PhaseDiscovering Phase = "discovering"
	PhaseParsing     Phase = "parsing"
	PhaseMerging     Phase = "merging"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether the phase ends a build.
func (p Phase) Terminal() bool { return p == PhaseDone || p == PhaseFailed }

// Event is one progress report. Delivery of intermediate events is lossy;
// every subscriber sees the terminal Done or Failed event for its build.
type Event struct {
	BuildID        uuid.UUID
	Phase          Phase
	FilesTotal     int
	FilesProcessed int
	SkippedLines   int
	SkippedFiles   int
	Err            error
}

// Subscription is the receiving end of one build's progress stream. The
// channel is closed after the terminal event.
type Subscription struct {
	BuildID uuid.UUID
	ch      chan Event
}

func newSubscription() *Subscription {
	return &Subscription{
		BuildID: uuid.New(),
		ch:      make(chan Event, 64),
	}
}

// Events returns the progress stream.
func (s *Subscription) Events() <-chan Event { return s.ch }

// publish delivers an event. Intermediate events are dropped when the
// subscriber lags; a terminal event evicts stale entries until it fits, then
// closes the stream.
func (s *Subscription) publish(ev Event) {
	ev.BuildID = s.BuildID
	if !ev.Phase.Terminal() {
		select {
		case s.ch <- ev:
		default:
		}
		return
	}

	for {
		select {
		case s.ch <- ev:
			close(s.ch)
			return
		default:
			// Make room by dropping the oldest buffered event.
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
