package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"off":     LevelOff,
		"":        LevelOff,
		"error":   LevelError,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"unknown": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%d want %d", in, got, want)
		}
	}
}

func TestRequestLogLevelQueryOverride(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("level=%d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("level=%d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/x?log=error", nil)
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("level=%d", got)
	}
}

func TestRequestLogLevelHeaderOverride(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("level=%d", got)
	}
}

func TestRequestLogLevelDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := requestLogLevel(r); got != defaultLogLevel {
		t.Fatalf("level=%d", got)
	}
}

func TestChunkLogWriterReportsFullWrite(t *testing.T) {
	var w chunkLogWriter
	n, err := w.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if n, _ := w.Write(nil); n != 0 {
		t.Fatalf("n=%d", n)
	}
}
