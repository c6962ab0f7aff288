// Package watch detects log file creation, modification, and removal under
// a root by periodic polling. The Observer interface keeps the reconciler
// independent of the backend, so a push-based OS notifier can be substituted
// without touching the state machine.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/SmooAI/logdex/internal/catalog"
	"github.com/SmooAI/logdex/internal/discover"
)

// EventType classifies a file change.
type EventType int

const (
	Created EventType = iota
	Modified
	Removed
)

func (t EventType) String() string {
	switch t {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one file change. At most one event per file per poll cycle.
type Event struct {
	Type EventType
	Path string
}

// Observer is a source of file-change events.
type Observer interface {
	// Run blocks until ctx is cancelled or the observer fails. Cancellation
	// is cooperative: the flag is checked at the start of each poll tick.
	Run(ctx context.Context) error
	Events() <-chan Event
	Errors() <-chan error
}

// DefaultInterval matches the sampling rate the log writers were tuned
// against.
const DefaultInterval = 2 * time.Second

// Poller is the polling Observer. It re-runs discovery every tick and
// compares size+mtime fingerprints against the last known state, so an
// appended-to file is noticed without reading its content.
type Poller struct {
	root     string
	interval time.Duration
	walker   discover.Walker
	log      zerolog.Logger

	events chan Event
	errs   chan error
	known  map[string]catalog.Fingerprint
}

// NewPoller creates a poller for root. A non-positive interval uses
// DefaultInterval.
func NewPoller(root string, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		root:     root,
		interval: interval,
		log:      log.With().Str("component", "watch").Logger(),
		events:   make(chan Event, 256),
		errs:     make(chan error, 1),
		known:    make(map[string]catalog.Fingerprint),
	}
}

func (p *Poller) Events() <-chan Event { return p.events }
func (p *Poller) Errors() <-chan error { return p.errs }

// Run polls until ctx is cancelled. The watched root disappearing stops the
// loop with an error instead of crashing anything; the error is also
// surfaced on Errors.
func (p *Poller) Run(ctx context.Context) error {
	// Seed fingerprints so the first tick reports only real changes.
	if res, err := p.walker.Discover(p.root); err == nil {
		for _, path := range res.Files {
			if fp, ok := fingerprint(path); ok {
				p.known[path] = fp
			}
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := p.poll(ctx); err != nil {
			p.log.Error().Err(err).Msg("watch stopped")
			select {
			case p.errs <- err:
			default:
			}
			return err
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("watched root: %w", err)
	}

	res, err := p.walker.Discover(p.root)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}

	seen := make(map[string]struct{}, len(res.Files))
	for _, path := range res.Files {
		seen[path] = struct{}{}
		fp, ok := fingerprint(path)
		if !ok {
			continue
		}
		prev, existed := p.known[path]
		if existed && prev.Equal(fp) {
			continue
		}
		p.known[path] = fp
		typ := Created
		if existed {
			typ = Modified
		}
		if !p.send(ctx, Event{Type: typ, Path: path}) {
			return ctx.Err()
		}
	}

	for path := range p.known {
		if _, ok := seen[path]; ok {
			continue
		}
		delete(p.known, path)
		if !p.send(ctx, Event{Type: Removed, Path: path}) {
			return ctx.Err()
		}
	}

	return nil
}

func (p *Poller) send(ctx context.Context, ev Event) bool {
	select {
	case p.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func fingerprint(path string) (catalog.Fingerprint, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return catalog.Fingerprint{}, false
	}
	return catalog.Fingerprint{Size: info.Size(), ModTime: info.ModTime()}, true
}

var _ Observer = (*Poller)(nil)
