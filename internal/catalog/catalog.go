// Package catalog defines the row/column model for the log index and the
// immutable snapshot published after every build.
package catalog

import (
	"sort"
	"time"
)

// FileEntry is the last-known state of one discovered log file.
type FileEntry struct {
	Path    string
	ModTime time.Time
	Size    int64

	// Lines holds the sanitized (ANSI-stripped) text of every physical line.
	// Used to detect no-op refreshes and to show surrounding context.
	Lines []string
}

// Fingerprint derives a change-detection token from size and mtime, so a
// poll cycle can decide "changed" without re-reading content.
type Fingerprint struct {
	Size    int64
	ModTime time.Time
}

// FingerprintOf returns the entry's fingerprint.
func (f *FileEntry) FingerprintOf() Fingerprint {
	return Fingerprint{Size: f.Size, ModTime: f.ModTime}
}

// Equal reports whether two fingerprints describe the same content state.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	return fp.Size == other.Size && fp.ModTime.Equal(other.ModTime)
}

// Row is one flattened log record. Immutable after creation; incremental
// rebuilds carry unchanged rows over by pointer.
type Row struct {
	// File is the owning file's path; FileOrdinal its position in
	// Catalog.Files at the time the row was parsed.
	File        string
	FileOrdinal int

	// LineStart/LineEnd bound the physical lines the record spans
	// (pretty-printed JSON may cover several).
	LineStart int
	LineEnd   int

	// Time is the zero value when the record carried no parseable timestamp.
	Time time.Time

	// Promoted fields. Empty string means absent.
	Level         string
	Message       string
	Error         string
	CorrelationID string
	Name          string
	Service       string
	Namespace     string
	TraceID       string
	RequestID     string

	// Flat is the recursively flattened record: nested keys joined with
	// dots, array elements suffixed with [i].
	Flat map[string]string

	// Raw is the JSON text of the block the row was parsed from.
	Raw string
}

// HasTime reports whether the row carries a timestamp.
func (r *Row) HasTime() bool { return !r.Time.IsZero() }

// Value resolves a column key against the row, preferring promoted fields.
func (r *Row) Value(key string) string {
	switch key {
	case "time":
		if r.HasTime() {
			return r.Time.UTC().Format(time.RFC3339Nano)
		}
		return ""
	case "level":
		return r.Level
	case "msg":
		return r.Message
	case "correlationId":
		return r.CorrelationID
	case "name":
		return r.Name
	case "service":
		return r.Service
	case "namespace":
		return r.Namespace
	case "traceId":
		return r.TraceID
	case "requestId":
		return r.RequestID
	case "error":
		if r.Error != "" {
			return r.Error
		}
	}
	return r.Flat[key]
}

// StoreHandle is what a Catalog keeps of its analytical store: enough for
// consumers to query it and for the publisher to dispose of it on swap.
// The store lives only as long as its catalog is the published one; once a
// newer catalog replaces it, queries against the retained handle fail.
type StoreHandle interface {
	Close() error
}

// Catalog is the immutable aggregate published after a build. Readers get
// the whole value or none of it; the publisher swaps the handle wholesale.
type Catalog struct {
	Files   []*FileEntry
	Rows    []*Row
	Columns []string
	Store   StoreHandle
}

// FileIndex returns the ordinal of path in Files, or -1.
func (c *Catalog) FileIndex(path string) int {
	for i, f := range c.Files {
		if f.Path == path {
			return i
		}
	}
	return -1
}

// SortRows orders rows ascending by timestamp. Rows without a timestamp sort
// after every timestamped row. Ties break on file path, then line offset.
// Discovery lists files in sorted path order, so the path tie-break matches
// discovery order and, unlike an ordinal, stays stable when incremental
// rebuilds renumber the file list.
func SortRows(rows []*Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.HasTime() && b.HasTime():
			if !a.Time.Equal(b.Time) {
				return a.Time.Before(b.Time)
			}
		case a.HasTime():
			return true
		case b.HasTime():
			return false
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.LineStart < b.LineStart
	})
}

// ColumnsOf computes the column union across rows in first-seen order.
// Within a row, keys contribute in sorted order so the result is
// deterministic for identical inputs.
func ColumnsOf(rows []*Row) []string {
	seen := make(map[string]struct{})
	var columns []string
	keys := make([]string, 0, 16)
	for _, row := range rows {
		keys = keys[:0]
		for k := range row.Flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	return columns
}
