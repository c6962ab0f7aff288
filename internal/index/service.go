// Package index owns the catalog lifecycle: full builds, live incremental
// reindexing, and atomic publication of snapshots. It is the engine's public
// surface; everything else in this module is plumbing beneath it.
package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SmooAI/logdex/internal/catalog"
	"github.com/SmooAI/logdex/internal/discover"
	"github.com/SmooAI/logdex/internal/parse"
	"github.com/SmooAI/logdex/internal/watch"
)

// State names where the reconciler currently is.
type State int

const (
	StateIdle State = iota
	StateFullIndexing
	StateWatching
	StateIncremental
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFullIndexing:
		return "full-indexing"
	case StateWatching:
		return "watching"
	case StateIncremental:
		return "incremental-reindexing"
	default:
		return "unknown"
	}
}

// Options configure a Service. Zero values fall back to sane defaults.
type Options struct {
	// Workers bounds the parse pool.
	Workers int
	// PollInterval is the watcher's poll period.
	PollInterval time.Duration
	// FlattenDepth bounds JSON flattening recursion.
	FlattenDepth int
	// StoreDir holds per-build store files; empty means the system temp dir.
	StoreDir string
	// LogDirName and Extensions override the discovery convention.
	LogDirName string
	Extensions []string
	// Logger receives engine diagnostics; defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Service is the indexing engine. One instance owns the published catalog
// handle, the watcher, and the reconciler loop.
type Service struct {
	walker    discover.Walker
	extractor parse.Extractor
	workers   int
	interval  time.Duration
	storeDir  string
	log       zerolog.Logger

	handle catalogHandle

	mu            sync.Mutex
	state         State
	root          string
	live          bool
	closed        bool
	gen           uint64 // latest requested build generation
	building      int    // full builds in flight
	pendingChange map[string]struct{}
	pendingRemove map[string]struct{}

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// NewService creates an engine with the given options.
func NewService(opts Options) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{
		walker: discover.Walker{
			DirName:    opts.LogDirName,
			Extensions: opts.Extensions,
		},
		extractor:     parse.Extractor{FlattenDepth: opts.FlattenDepth},
		workers:       workers,
		interval:      opts.PollInterval,
		storeDir:      opts.StoreDir,
		log:           logger.With().Str("component", "index").Logger(),
		live:          true,
		pendingChange: make(map[string]struct{}),
		pendingRemove: make(map[string]struct{}),
	}
}

func (s *Service) storePath() string {
	if s.storeDir == "" {
		return ""
	}
	return filepath.Join(s.storeDir, fmt.Sprintf("logdex-%s.db", uuid.NewString()))
}

// GetCatalog returns the currently published snapshot, or nil before the
// first successful build. The snapshot is read-only. Its in-memory rows stay
// valid indefinitely, but its Store is closed when a newer catalog
// supersedes it; consumers issuing store queries should re-fetch the
// snapshot rather than hold one across republishes.
func (s *Service) GetCatalog() *catalog.Catalog {
	return s.handle.Load()
}

// State reports the reconciler's current state.
func (s *Service) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingChanges reports how many change events are recorded but unapplied
// (live mode off).
func (s *Service) PendingChanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingChange) + len(s.pendingRemove)
}

// StartIndex begins a full build of root and returns the progress
// subscription. A newer request always supersedes an older in-flight one:
// only the most recently requested build's result is published.
func (s *Service) StartIndex(root string) (*Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("service closed")
	}
	s.root = root
	s.gen++
	gen := s.gen
	s.building++
	s.state = StateFullIndexing
	s.mu.Unlock()

	sub := newSubscription()
	go s.runBuild(root, gen, sub)
	return sub, nil
}

// RequestReindex forces a full rebuild of the last indexed root, superseding
// any in-flight incremental or full work.
func (s *Service) RequestReindex() (*Subscription, error) {
	s.mu.Lock()
	root := s.root
	s.pendingChange = make(map[string]struct{})
	s.pendingRemove = make(map[string]struct{})
	s.mu.Unlock()
	if root == "" {
		return nil, errors.New("no root indexed yet")
	}
	return s.StartIndex(root)
}

func (s *Service) runBuild(root string, gen uint64, sub *Subscription) {
	start := time.Now()
	cat, err := s.fullBuild(root, sub)

	s.mu.Lock()
	s.building--
	latest := s.gen == gen
	if latest && !s.closed {
		if s.watchCancel != nil {
			s.state = StateWatching
		} else {
			s.state = StateIdle
		}
	}
	closed := s.closed
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("root", root).Msg("build failed")
		sub.publish(Event{Phase: PhaseFailed, Err: err})
		return
	}

	if !latest || closed {
		// Superseded by a newer request; discard unpublished.
		if cat.Store != nil {
			_ = cat.Store.Close()
		}
		s.log.Debug().Str("root", root).Msg("build superseded, result discarded")
		sub.publish(Event{Phase: PhaseDone, FilesTotal: len(cat.Files), FilesProcessed: len(cat.Files)})
		return
	}

	s.publish(cat)
	s.log.Info().
		Str("root", root).
		Int("files", len(cat.Files)).
		Int("rows", len(cat.Rows)).
		Int("columns", len(cat.Columns)).
		Dur("took", time.Since(start)).
		Msg("catalog published")
	sub.publish(Event{Phase: PhaseDone, FilesTotal: len(cat.Files), FilesProcessed: len(cat.Files)})
}

// publish swaps the handle and disposes of the superseded catalog's store.
func (s *Service) publish(cat *catalog.Catalog) {
	if prev := s.handle.Swap(cat); prev != nil && prev.Store != nil {
		_ = prev.Store.Close()
	}
}

// SetLive toggles live mode. When off, watcher events are recorded for
// status display but not applied until a manual reindex.
func (s *Service) SetLive(live bool) {
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
}

// StartWatch begins watching root. Change events drive incremental
// reindexing while live mode is on.
func (s *Service) StartWatch(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("service closed")
	}
	if s.watchCancel != nil {
		return errors.New("watch already running")
	}
	s.root = root

	poller := watch.NewPoller(root, s.interval, s.log)
	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	done := make(chan struct{})
	s.watchDone = done
	if s.state == StateIdle {
		s.state = StateWatching
	}

	go func() { _ = poller.Run(ctx) }()
	go s.reconcile(ctx, poller, done)
	return nil
}

// StopWatch stops the watcher. Recorded pending events are kept.
func (s *Service) StopWatch() {
	s.mu.Lock()
	cancel := s.watchCancel
	done := s.watchDone
	s.watchCancel = nil
	s.watchDone = nil
	if s.state == StateWatching {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Close shuts the engine down: the watcher is cancelled and any in-flight
// build finishes without publishing.
func (s *Service) Close() {
	s.StopWatch()
	s.mu.Lock()
	s.closed = true
	s.gen++ // in-flight builds observe a newer generation and discard
	s.mu.Unlock()
	if cat := s.handle.Swap(nil); cat != nil && cat.Store != nil {
		_ = cat.Store.Close()
	}
}

// reconcile is the event-processing loop: it batches watcher events per
// tick, applies them incrementally while live, and records them otherwise.
func (s *Service) reconcile(ctx context.Context, poller *watch.Poller, done chan struct{}) {
	defer close(done)

	interval := s.interval
	if interval <= 0 {
		interval = watch.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-poller.Events():
			s.record(ev)
		case err := <-poller.Errors():
			s.log.Error().Err(err).Msg("watcher stopped")
			s.mu.Lock()
			if s.state == StateWatching {
				s.state = StateIdle
			}
			cancel := s.watchCancel
			s.watchCancel = nil
			s.watchDone = nil
			s.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return
		case <-ticker.C:
			s.applyPending()
		}
	}
}

// record folds one watcher event into the pending sets. A removal wins over
// an earlier change to the same path.
func (s *Service) record(ev watch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case watch.Removed:
		delete(s.pendingChange, ev.Path)
		s.pendingRemove[ev.Path] = struct{}{}
	default:
		if _, gone := s.pendingRemove[ev.Path]; gone {
			delete(s.pendingRemove, ev.Path)
		}
		s.pendingChange[ev.Path] = struct{}{}
	}
}

// applyPending runs one incremental reindex over the batched events. A full
// build in flight defers the batch; a manual reindex issued mid-run
// supersedes the result.
func (s *Service) applyPending() {
	s.mu.Lock()
	if !s.live || s.building > 0 || (len(s.pendingChange) == 0 && len(s.pendingRemove) == 0) {
		s.mu.Unlock()
		return
	}
	prev := s.handle.Load()
	if prev == nil {
		// Nothing published yet; a full build will pick everything up.
		s.mu.Unlock()
		return
	}
	changed := keys(s.pendingChange)
	removed := keys(s.pendingRemove)
	s.pendingChange = make(map[string]struct{})
	s.pendingRemove = make(map[string]struct{})
	gen := s.gen
	s.state = StateIncremental
	s.mu.Unlock()

	cat, dirty, err := s.incremental(prev, changed, removed)

	s.mu.Lock()
	if s.state == StateIncremental {
		s.state = StateWatching
	}
	latest := s.gen == gen && !s.closed
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("incremental reindex failed")
		return
	}
	if !dirty {
		return
	}
	if !latest {
		if cat.Store != nil {
			_ = cat.Store.Close()
		}
		s.log.Debug().Msg("incremental result superseded, discarded")
		return
	}

	s.publish(cat)
	s.log.Info().
		Int("changed", len(changed)).
		Int("removed", len(removed)).
		Int("rows", len(cat.Rows)).
		Msg("live update published")
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
