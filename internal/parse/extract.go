// Package parse extracts flattened rows from individual log files. Each file
// is parsed in isolation: tasks share no state and a failure never crosses
// file boundaries.
package parse

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/SmooAI/logdex/internal/catalog"
)

// Promoted field keys emitted by the companion loggers.
const (
	keyLevel         = "level"
	keyLogLevel      = "LogLevel"
	keyTime          = "time"
	keyMessage       = "msg"
	keyError         = "error"
	keyCorrelationID = "correlationId"
	keyRequestID     = "requestId"
	keyTraceID       = "traceId"
	keyName          = "name"
	keyNamespace     = "namespace"
	keyService       = "service"
)

// maxBlockLines bounds how many physical lines one multi-line JSON record may
// span before the opening line is given up as malformed.
const maxBlockLines = 64

// FileResult is the outcome of parsing one file.
type FileResult struct {
	Entry        *catalog.FileEntry
	Rows         []*catalog.Row
	SkippedLines int
}

// Extractor turns a file into rows. The zero value uses the default flatten
// depth bound.
type Extractor struct {
	FlattenDepth int
}

// File parses the file at path, attributing rows to the given file ordinal.
// Malformed lines are counted, not fatal; only an unreadable file returns an
// error, and the caller isolates that per file.
func (e *Extractor) File(path string, ordinal int) (*FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	lines := sanitizeLines(m.data)
	rows, skipped := e.Rows(path, ordinal, lines)

	return &FileResult{
		Entry: &catalog.FileEntry{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Lines:   lines,
		},
		Rows:         rows,
		SkippedLines: skipped,
	}, nil
}

// sanitizeLines splits raw content into ANSI-stripped, CR-trimmed lines.
func sanitizeLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	raw := strings.Split(string(data), "\n")
	// A trailing newline produces one empty phantom line; drop it.
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimSuffix(string(stripANSI([]byte(line))), "\r")
	}
	return lines
}

// Rows scans sanitized lines for JSON records. A record may span several
// lines (pretty-printed output); lines are accumulated until the block
// parses. Lines that never yield a record count as skipped.
func (e *Extractor) Rows(path string, ordinal int, lines []string) ([]*catalog.Row, int) {
	var rows []*catalog.Row
	skipped := 0

	idx := 0
	for idx < len(lines) {
		trimmed := strings.TrimSpace(lines[idx])
		if trimmed == "" || isSeparator(trimmed) {
			skipped++
			idx++
			continue
		}
		start := strings.IndexByte(trimmed, '{')
		if start < 0 {
			skipped++
			idx++
			continue
		}

		block := trimmed[start:]
		value, raw, end := e.growBlock(block, lines, idx)
		if value == nil {
			skipped++
			idx++
			continue
		}

		row := e.row(value, raw, path, ordinal, idx, end)
		rows = append(rows, row)
		idx = end + 1
	}

	return rows, skipped
}

// growBlock extends block with following lines until the candidate JSON
// object parses or the span limit is hit. Returns the parsed value, the
// candidate text, and the index of the last consumed line; a nil value means
// no record emerged from this opening line.
func (e *Extractor) growBlock(block string, lines []string, startIdx int) (any, string, int) {
	end := startIdx
	for {
		if candidate, ok := jsonCandidate(block); ok {
			if value, err := oj.ParseString(candidate); err == nil {
				if _, isObj := value.(map[string]any); isObj {
					return value, candidate, end
				}
			}
		}
		end++
		if end >= len(lines) || end-startIdx >= maxBlockLines {
			return nil, "", startIdx
		}
		block += "\n" + lines[end]
	}
}

// jsonCandidate slices block from its first '{' through its last '}',
// tolerating prefix text (writer timestamps, level tags) and suffixes.
func jsonCandidate(block string) (string, bool) {
	start := strings.IndexByte(block, '{')
	endIdx := strings.LastIndexByte(block, '}')
	if start < 0 || endIdx < start {
		return "", false
	}
	return block[start : endIdx+1], true
}

func isSeparator(line string) bool {
	for _, r := range line {
		if r != '-' {
			return false
		}
	}
	return true
}

func (e *Extractor) row(value any, raw, path string, ordinal, lineStart, lineEnd int) *catalog.Row {
	obj := value.(map[string]any)

	row := &catalog.Row{
		File:          path,
		FileOrdinal:   ordinal,
		LineStart:     lineStart,
		LineEnd:       lineEnd,
		Level:         pickString(obj, keyLevel, keyLogLevel),
		Message:       pickString(obj, keyMessage),
		CorrelationID: pickString(obj, keyCorrelationID),
		Name:          pickString(obj, keyName),
		Service:       pickString(obj, keyService),
		Namespace:     pickString(obj, keyNamespace),
		TraceID:       pickString(obj, keyTraceID),
		RequestID:     pickString(obj, keyRequestID),
		Flat:          catalog.Flatten(value, e.FlattenDepth),
		Raw:           raw,
	}

	if ts, ok := pickTime(obj); ok {
		row.Time = ts
	}
	if errVal, ok := obj[keyError]; ok {
		row.Error = catalog.ValueString(errVal)
	}

	return row
}

// pickString returns the first present string value among keys.
func pickString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return ""
}

// pickTime coerces the record's "time" field to a timestamp. Accepts
// RFC 3339 (with or without a trailing Z) and epoch seconds/milliseconds; a
// value above 10^10 is read as milliseconds.
func pickTime(obj map[string]any) (time.Time, bool) {
	raw, ok := obj[keyTime]
	if !ok {
		return time.Time{}, false
	}

	switch v := raw.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts.UTC(), true
		}
		if !strings.HasSuffix(v, "Z") {
			if ts, err := time.Parse(time.RFC3339Nano, v+"Z"); err == nil {
				return ts.UTC(), true
			}
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return epochTime(n), true
		}
	case int64:
		return epochTime(v), true
	case float64:
		return epochTime(int64(v)), true
	}
	return time.Time{}, false
}

func epochTime(n int64) time.Time {
	if n > 10_000_000_000 {
		return time.Unix(n/1_000, (n%1_000)*int64(time.Millisecond)).UTC()
	}
	return time.Unix(n, 0).UTC()
}
