package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/ohler55/ojg/oj"
)

// Promoted columns queryable directly on the rows table. Everything else
// goes through the row_fields inverted index.
var promotedColumns = map[string]string{
	"level":         "level",
	"msg":           "msg",
	"error":         "error",
	"correlationId": "correlation_id",
	"name":          "name",
	"service":       "service",
	"namespace":     "namespace",
	"traceId":       "trace_id",
	"requestId":     "request_id",
}

// Querier is the read-only filter interface consumers use. Results are sets
// of row ids, which index into the owning catalog's sorted row slice.
type Querier interface {
	FilterEqual(column, value string) (*roaring.Bitmap, error)
	FilterRange(column, lo, hi string) (*roaring.Bitmap, error)
	FilterTime(from, to time.Time) (*roaring.Bitmap, error)
}

// FilterEqual returns ids of rows whose column equals value exactly.
func (s *Store) FilterEqual(column, value string) (*roaring.Bitmap, error) {
	if col, ok := promotedColumns[column]; ok {
		return s.collect(fmt.Sprintf(`SELECT row_id FROM rows WHERE %s = ?`, col), value)
	}
	return s.collect(`SELECT row_id FROM row_fields WHERE key = ? AND value = ?`, column, value)
}

// FilterRange returns ids of rows whose column value falls in [lo, hi],
// compared lexicographically. An empty bound is open.
func (s *Store) FilterRange(column, lo, hi string) (*roaring.Bitmap, error) {
	var conds []string
	var args []any

	if col, ok := promotedColumns[column]; ok {
		if lo != "" {
			conds = append(conds, col+" >= ?")
			args = append(args, lo)
		}
		if hi != "" {
			conds = append(conds, col+" <= ?")
			args = append(args, hi)
		}
		if len(conds) == 0 {
			conds = append(conds, col+" IS NOT NULL")
		}
		query := `SELECT row_id FROM rows WHERE ` + strings.Join(conds, " AND ")
		return s.collect(query, args...)
	}

	conds = append(conds, "key = ?")
	args = append(args, column)
	if lo != "" {
		conds = append(conds, "value >= ?")
		args = append(args, lo)
	}
	if hi != "" {
		conds = append(conds, "value <= ?")
		args = append(args, hi)
	}
	query := `SELECT row_id FROM row_fields WHERE ` + strings.Join(conds, " AND ")
	return s.collect(query, args...)
}

// FilterTime returns ids of rows with a timestamp in [from, to]. Zero bounds
// are open; rows without a timestamp never match.
func (s *Store) FilterTime(from, to time.Time) (*roaring.Bitmap, error) {
	conds := []string{"ts IS NOT NULL"}
	var args []any
	if !from.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, to.UnixNano())
	}
	query := `SELECT row_id FROM rows WHERE ` + strings.Join(conds, " AND ")
	return s.collect(query, args...)
}

func (s *Store) collect(query string, args ...any) (*roaring.Bitmap, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := roaring.New()
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row id: %w", err)
		}
		out.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

var _ Querier = (*Store)(nil)

// flatToJSON renders a flat map as a deterministic JSON object (sorted keys).
func flatToJSON(flat map[string]string) string {
	if len(flat) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(oj.JSON(k))
		b.WriteByte(':')
		b.WriteString(oj.JSON(flat[k]))
	}
	b.WriteByte('}')
	return b.String()
}
