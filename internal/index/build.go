package index

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/SmooAI/logdex/internal/catalog"
	"github.com/SmooAI/logdex/internal/parse"
	"github.com/SmooAI/logdex/internal/store"
)

// fileOutcome is one parse task's result.
type fileOutcome struct {
	res *parse.FileResult
	err error
}

// fullBuild runs discovery and parsing across every file under root and
// assembles a complete catalog. Per-file failures are isolated and counted;
// only a missing root or a store-write failure is build-fatal.
func (s *Service) fullBuild(root string, sub *Subscription) (*catalog.Catalog, error) {
	sub.publish(Event{Phase: PhaseDiscovering})

	res, err := s.walker.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	total := len(res.Files)
	if res.SkippedDirs > 0 {
		s.log.Warn().Int("dirs", res.SkippedDirs).Msg("skipped unreadable directories")
	}

	sub.publish(Event{Phase: PhaseParsing, FilesTotal: total})

	// Each task writes its own slot, so the parse phase needs no locking.
	outcomes := make([]fileOutcome, total)
	var processed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.workers)
	for ordinal, path := range res.Files {
		p.Go(func() {
			fr, err := s.extractor.File(path, ordinal)
			outcomes[ordinal] = fileOutcome{res: fr, err: err}
			n := int(processed.Add(1))
			sub.publish(Event{Phase: PhaseParsing, FilesTotal: total, FilesProcessed: n})
		})
	}
	p.Wait()

	skippedLines := 0
	skippedFiles := 0
	var files []*catalog.FileEntry
	var rows []*catalog.Row
	for i, out := range outcomes {
		if out.err != nil {
			skippedFiles++
			s.log.Warn().Err(out.err).Str("path", res.Files[i]).Msg("skipping unreadable file")
			continue
		}
		skippedLines += out.res.SkippedLines
		files = append(files, out.res.Entry)
		rows = append(rows, out.res.Rows...)
	}

	sub.publish(Event{
		Phase:          PhaseMerging,
		FilesTotal:     total,
		FilesProcessed: total,
		SkippedLines:   skippedLines,
		SkippedFiles:   skippedFiles,
	})

	cat, err := s.assemble(files, rows)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// incremental merges a batch of file changes into the previous catalog's row
// set and produces a fresh catalog. Unchanged files contribute their
// existing Row pointers, so consumers can tell exactly which rows moved.
func (s *Service) incremental(prev *catalog.Catalog, changed, removed []string) (*catalog.Catalog, bool, error) {
	byFile := make(map[string][]*catalog.Row, len(prev.Files))
	for _, row := range prev.Rows {
		byFile[row.File] = append(byFile[row.File], row)
	}

	files := make([]*catalog.FileEntry, 0, len(prev.Files))
	for _, f := range prev.Files {
		if !slices.Contains(removed, f.Path) {
			files = append(files, f)
		}
	}
	dirty := len(files) != len(prev.Files)

	for _, path := range changed {
		ordinal := indexOfFile(files, path)
		if ordinal < 0 {
			ordinal = len(files)
		}

		fr, err := s.extractor.File(path, ordinal)
		if err != nil {
			// The file may have vanished between the poll and the parse, or
			// be briefly unreadable. Keep its previous state.
			s.log.Warn().Err(err).Str("path", path).Msg("incremental refresh failed")
			continue
		}

		if ordinal < len(files) {
			if slices.Equal(files[ordinal].Lines, fr.Entry.Lines) {
				continue // content identical, nothing to apply
			}
			files[ordinal] = fr.Entry
		} else {
			files = append(files, fr.Entry)
		}
		byFile[path] = fr.Rows
		dirty = true
	}

	if !dirty {
		return nil, false, nil
	}

	var rows []*catalog.Row
	for _, f := range files {
		rows = append(rows, byFile[f.Path]...)
	}

	cat, err := s.assemble(files, rows)
	if err != nil {
		return nil, false, err
	}
	return cat, true, nil
}

// assemble sorts rows, computes the column union, persists everything into a
// fresh analytical store, and only then forms the catalog value. A store
// failure leaves nothing published.
func (s *Service) assemble(files []*catalog.FileEntry, rows []*catalog.Row) (*catalog.Catalog, error) {
	catalog.SortRows(rows)
	columns := catalog.ColumnsOf(rows)

	st, err := store.Open(s.storePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.BulkInsert(rows); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store write: %w", err)
	}

	return &catalog.Catalog{
		Files:   files,
		Rows:    rows,
		Columns: columns,
		Store:   st,
	}, nil
}

func indexOfFile(files []*catalog.FileEntry, path string) int {
	for i, f := range files {
		if f.Path == path {
			return i
		}
	}
	return -1
}
