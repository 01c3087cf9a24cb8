package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeOllamaConfig struct {
	generateLines  []string
	generateStatus int
	generateBody   string
	tagsBody       string
	pullStatus     int
}

// fakeOllama serves just enough of the Ollama API surface for end-to-end tests.
type fakeOllama struct {
	*httptest.Server
	cfg fakeOllamaConfig

	mu       sync.Mutex
	pullName string
	tags     atomic.Int64
}

func newFakeOllama(t *testing.T, cfg fakeOllamaConfig) *fakeOllama {
	t.Helper()
	f := &fakeOllama{cfg: cfg}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if cfg.generateStatus != 0 && cfg.generateStatus != http.StatusOK {
			http.Error(w, "model not found", cfg.generateStatus)
			return
		}
		if cfg.generateBody != "" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(cfg.generateBody))
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range cfg.generateLines {
			w.Write([]byte(line + "\n"))
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.pullName = payload.Name
		f.mu.Unlock()
		if cfg.pullStatus != 0 && cfg.pullStatus != http.StatusOK {
			http.Error(w, "pull failed", cfg.pullStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.tags.Add(1)
		body := cfg.tagsBody
		if body == "" {
			body = `{"models":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"0.1.32"}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeOllama) lastPullName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pullName
}

func (f *fakeOllama) tagsCalls() int64 { return f.tags.Load() }

func (f *fakeOllama) close() { f.Server.Close() }
