package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentApp, JSON: true, Output: &buf})

	l.WithComponent(ComponentExport).Info("rendered", FieldFormat, "pdf")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, ComponentExport, lines[0][FieldComponent])
	require.Equal(t, "pdf", lines[0][FieldFormat])
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("chatty")
	require.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})

	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "req-1", lines[0][FieldRequestID])
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf}))

	sl.LogError(context.Background(), "upsert failed", errors.New("boom"), ComponentStorage, OpUpsert, nil)
	sl.LogTargetSaved(context.Background(), "u1", "Gaji", "2025-01", 5_000_000)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "boom", lines[0][FieldError])
	require.Equal(t, ComponentStorage, lines[0][FieldComponent])
	require.Equal(t, "Gaji", lines[1][FieldCategory])
	require.EqualValues(t, 5_000_000, lines[1][FieldAmount])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	require.Equal(t, "unknown", l.Component())
}
