package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeOllama is a configurable stand-in for the upstream server.
type fakeOllama struct {
	t *testing.T

	generateLines  []string // NDJSON lines served for streamed generate
	generateStatus int
	generateBody   string // overrides lines for non-stream responses

	pullStatus int
	pullBody   string

	tagsStatus int
	tagsBody   string

	versionStatus int

	tagsCalls    atomic.Int64
	lastGenerate generatePayload
	lastPull     pullPayload
}

func (f *fakeOllama) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&f.lastGenerate); err != nil {
			f.t.Errorf("decode generate payload: %v", err)
		}
		if f.generateStatus != 0 && f.generateStatus != http.StatusOK {
			http.Error(w, "model not found", f.generateStatus)
			return
		}
		if f.generateBody != "" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(f.generateBody))
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range f.generateLines {
			w.Write([]byte(line + "\n"))
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&f.lastPull); err != nil {
			f.t.Errorf("decode pull payload: %v", err)
		}
		if f.pullStatus != 0 && f.pullStatus != http.StatusOK {
			http.Error(w, "pull failed", f.pullStatus)
			return
		}
		body := f.pullBody
		if body == "" {
			body = `{"status":"success"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.tagsCalls.Add(1)
		if f.tagsStatus != 0 && f.tagsStatus != http.StatusOK {
			http.Error(w, "tags failed", f.tagsStatus)
			return
		}
		body := f.tagsBody
		if body == "" {
			body = `{"models":[{"name":"llama2:latest","size":42}]}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		if f.versionStatus != 0 && f.versionStatus != http.StatusOK {
			http.Error(w, "no version", f.versionStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"0.1.32"}`))
	})
	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func newFakeClient(t *testing.T, f *fakeOllama, opts ...Option) *Client {
	t.Helper()
	f.t = t
	srv := f.server()
	return New(srv.URL, opts...)
}
