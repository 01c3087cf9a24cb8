package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"llmproxy/internal/httpapi"
	"llmproxy/internal/upstream"
	"llmproxy/pkg/types"
)

// newProxy wires a real upstream.Client against the fake Ollama server and
// serves the full middleware stack, mirroring production wiring.
func newProxy(t *testing.T, upstreamURL string, cacheTTL time.Duration) *httptest.Server {
	t.Helper()
	client := upstream.New(upstreamURL, upstream.WithGenerateTimeout(5*time.Second))
	var svc httpapi.Service = client
	if cacheTTL > 0 {
		svc = upstream.NewCached(client, cacheTTL)
	}
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestE2E_GenerateStreamPassthrough(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{generateLines: []string{
		`{"response":"The "}`,
		`{"response":"sea"}`,
		`{"garbage":`,
		`{"response":"."}`,
		`{"done":true}`,
	}})
	proxy := newProxy(t, fake.URL, 0)

	resp := postJSON(t, proxy.URL+"/api/generate", `{"prompt":"haiku","model":"llama2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%s", ct)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "The sea." {
		t.Fatalf("body=%q", b)
	}
}

func TestE2E_GenerateUpstreamErrorStatus(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{generateStatus: http.StatusNotFound})
	proxy := newProxy(t, fake.URL, 0)

	resp := postJSON(t, proxy.URL+"/api/generate", `{"prompt":"hi"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var e types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("json: %v", err)
	}
	if e.Code != http.StatusNotFound {
		t.Fatalf("error=%+v", e)
	}
}

func TestE2E_GenerateNonStreamForwardsUpstreamJSON(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{generateBody: `{"model":"llama2","response":"buffered","done":true,"eval_count":3}`})
	proxy := newProxy(t, fake.URL, 0)

	resp := postJSON(t, proxy.URL+"/api/generate", `{"prompt":"hi","stream":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("json: %v", err)
	}
	// Unknown upstream fields survive the proxy untouched.
	if m["response"] != "buffered" || m["eval_count"] != float64(3) {
		t.Fatalf("body=%v", m)
	}
}

func TestE2E_ModelsPassthrough(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{tagsBody: `{"models":[{"name":"llama2:latest","size":7}]}`})
	proxy := newProxy(t, fake.URL, time.Minute)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(proxy.URL + "/api/models")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var body types.ModelsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("json: %v", err)
		}
		resp.Body.Close()
		if len(body.Models) != 1 || body.Models[0].Name != "llama2:latest" {
			t.Fatalf("models=%+v", body.Models)
		}
	}
	if fake.tagsCalls() != 1 {
		t.Fatalf("cached listing still hit upstream %d times", fake.tagsCalls())
	}
}

func TestE2E_DownloadModel(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{})
	proxy := newProxy(t, fake.URL, 0)

	resp := postJSON(t, proxy.URL+"/api/models/download", `{"llm_name":"mistral"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var body types.DownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Message != "Model mistral downloaded successfully" {
		t.Fatalf("message=%q", body.Message)
	}
	if fake.lastPullName() != "mistral" {
		t.Fatalf("upstream pulled %q", fake.lastPullName())
	}
}

func TestE2E_ReadyzTracksUpstream(t *testing.T) {
	fake := newFakeOllama(t, fakeOllamaConfig{})
	proxy := newProxy(t, fake.URL, 0)

	resp, err := http.Get(proxy.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	fake.close()
	resp, err = http.Get(proxy.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
