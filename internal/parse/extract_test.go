package parse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, content string) ([]string, *FileResult) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var e Extractor
	res, err := e.File(path, 0)
	require.NoError(t, err)
	return res.Entry.Lines, res
}

func TestFile_SingleLineRecords(t *testing.T) {
	_, res := parseLines(t, `{"time":"2024-01-01T00:00:00Z","level":"info","msg":"a"}
{"time":"2024-01-01T00:00:02Z","level":"error","msg":"b"}
`)

	require.Len(t, res.Rows, 2)
	assert.Zero(t, res.SkippedLines)
	assert.Equal(t, "a", res.Rows[0].Message)
	assert.Equal(t, "info", res.Rows[0].Level)
	assert.Equal(t, "error", res.Rows[1].Level)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC), res.Rows[1].Time)
}

func TestFile_MalformedLineSkipped(t *testing.T) {
	_, res := parseLines(t, `{"msg":"one"}
not json
{"msg":"three"}
`)

	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.SkippedLines)
	assert.Equal(t, "one", res.Rows[0].Message)
	assert.Equal(t, "three", res.Rows[1].Message)
}

func TestFile_PrefixAndSuffixTolerated(t *testing.T) {
	_, res := parseLines(t, `2024-01-01 INFO {"msg":"wrapped","level":"info"} trailing
`)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "wrapped", res.Rows[0].Message)
	assert.Equal(t, `{"msg":"wrapped","level":"info"}`, res.Rows[0].Raw)
}

func TestFile_MultiLineRecord(t *testing.T) {
	_, res := parseLines(t, `{
  "time": "2024-01-01T00:00:00Z",
  "msg": "pretty"
}
{"msg":"compact"}
`)

	require.Len(t, res.Rows, 2)
	assert.Zero(t, res.SkippedLines)
	assert.Equal(t, "pretty", res.Rows[0].Message)
	assert.Equal(t, 0, res.Rows[0].LineStart)
	assert.Equal(t, 3, res.Rows[0].LineEnd)
	assert.Equal(t, 4, res.Rows[1].LineStart)
}

func TestFile_ANSIStripped(t *testing.T) {
	_, res := parseLines(t, "\x1b[32m{\"level\":\"info\",\"msg\":\"green\"}\x1b[0m\n")

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "green", res.Rows[0].Message)
}

func TestFile_PromotedFields(t *testing.T) {
	_, res := parseLines(t, `{"time":"2024-01-01T00:00:00Z","LogLevel":"warn","msg":"m","error":"boom","correlationId":"c1","name":"n","service":"svc","namespace":"ns","traceId":"t1","requestId":"r1"}
`)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "warn", row.Level)
	assert.Equal(t, "boom", row.Error)
	assert.Equal(t, "c1", row.CorrelationID)
	assert.Equal(t, "n", row.Name)
	assert.Equal(t, "svc", row.Service)
	assert.Equal(t, "ns", row.Namespace)
	assert.Equal(t, "t1", row.TraceID)
	assert.Equal(t, "r1", row.RequestID)
	// Promoted fields stay in the flat mapping too.
	assert.Equal(t, "warn", row.Flat["LogLevel"])
	assert.Equal(t, "m", row.Flat["msg"])
}

func TestFile_StructuredErrorField(t *testing.T) {
	_, res := parseLines(t, `{"msg":"m","error":{"kind":"io","detail":"eof"}}
`)

	require.Len(t, res.Rows, 1)
	assert.Contains(t, res.Rows[0].Error, `"kind"`)
	assert.Equal(t, "io", res.Rows[0].Flat["error.kind"])
}

func TestFile_BlankAndSeparatorLines(t *testing.T) {
	_, res := parseLines(t, `{"msg":"a"}

----------
{"msg":"b"}
`)

	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 2, res.SkippedLines)
}

func TestFile_EmptyFile(t *testing.T) {
	lines, res := parseLines(t, "")

	assert.Empty(t, lines)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.SkippedLines)
}

func TestFile_Unreadable(t *testing.T) {
	var e Extractor
	_, err := e.File(filepath.Join(t.TempDir(), "missing.log"), 0)
	assert.Error(t, err)
}

func TestPickTime_Formats(t *testing.T) {
	cases := []struct {
		name string
		val  any
		want time.Time
	}{
		{"rfc3339", "2024-01-01T00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"no zone suffix", "2024-01-01T00:00:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch seconds", int64(1704067200), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", int64(1704067200500), time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC)},
		{"numeric string", "1704067200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, ok := pickTime(map[string]any{"time": tc.val})
			require.True(t, ok)
			assert.True(t, ts.Equal(tc.want), "got %v want %v", ts, tc.want)
		})
	}

	_, ok := pickTime(map[string]any{"time": "garbage"})
	assert.False(t, ok)
	_, ok = pickTime(map[string]any{})
	assert.False(t, ok)
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "hello", string(stripANSI([]byte("\x1b[31mhello\x1b[0m"))))
	assert.Equal(t, "plain", string(stripANSI([]byte("plain"))))
}
