// Package upstream implements the HTTP client for the Ollama API the proxy
// forwards to: /api/generate, /api/pull, /api/tags and /api/version.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llmproxy/pkg/types"
)

const (
	// maxScanBuf bounds a single upstream NDJSON line.
	maxScanBuf = 1 << 20
	// maxErrorDetail bounds how much of an upstream error body is echoed back.
	maxErrorDetail = 8 << 10
	// probeTimeout bounds the /api/version readiness probe.
	probeTimeout = 2 * time.Second
)

// Client speaks the upstream Ollama HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	genTimeout time.Duration
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithGenerateTimeout bounds a single generate call. Zero disables.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *Client) { c.genTimeout = d }
}

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for the given base URL, e.g. http://localhost:11434.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		genTimeout: 60 * time.Second,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// generatePayload is the upstream /api/generate request body.
type generatePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream *bool  `json:"stream,omitempty"`
}

// generateChunk is one NDJSON line of a streamed generate response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type pullPayload struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type tagsResponse struct {
	Models []types.Model `json:"models"`
}

type versionResponse struct {
	Version string `json:"version"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// readDetail drains up to maxErrorDetail bytes of an error body for reporting.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorDetail))
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return "failed to read upstream response"
	}
	return string(bytes.TrimSpace(b))
}

// Generate streams a completion for prompt from the upstream and relays the
// text of each NDJSON chunk to w, calling flush after every write. The
// upstream status is checked before anything is written to w, so callers can
// still map pre-stream failures to a proper HTTP status.
func (c *Client) Generate(ctx context.Context, model, prompt string, w io.Writer, flush func()) error {
	if c.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.genTimeout)
		defer cancel()
	}
	resp, err := c.post(ctx, "/api/generate", generatePayload{Model: model, Prompt: prompt})
	if err != nil {
		return ErrUnreachable("generate", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrStatus(resp.StatusCode, readDetail(resp.Body))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), maxScanBuf)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Partial or non-JSON lines are skipped, matching pass-through semantics.
			c.log.Debug().Err(err).Msg("skipping undecodable upstream line")
			continue
		}
		if chunk.Response != "" {
			if _, err := io.WriteString(w, chunk.Response); err != nil {
				return fmt.Errorf("write chunk: %w", err)
			}
			if flush != nil {
				flush()
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read upstream stream: %w", err)
	}
	return nil
}

// GenerateBlocking asks the upstream for a single buffered completion and
// returns its JSON body verbatim.
func (c *Client) GenerateBlocking(ctx context.Context, model, prompt string) (json.RawMessage, error) {
	if c.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.genTimeout)
		defer cancel()
	}
	noStream := false
	resp, err := c.post(ctx, "/api/generate", generatePayload{Model: model, Prompt: prompt, Stream: &noStream})
	if err != nil {
		return nil, ErrUnreachable("generate", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrStatus(resp.StatusCode, readDetail(resp.Body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	return json.RawMessage(body), nil
}

// Pull downloads a model on the upstream server and waits for completion.
func (c *Client) Pull(ctx context.Context, name string) error {
	resp, err := c.post(ctx, "/api/pull", pullPayload{Name: name, Stream: false})
	if err != nil {
		return ErrUnreachable("pull", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrStatus(resp.StatusCode, readDetail(resp.Body))
	}
	var res pullResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode pull response: %w", err)
	}
	if res.Error != "" {
		return fmt.Errorf("pull %s: %s", name, res.Error)
	}
	if res.Status != "success" {
		return fmt.Errorf("pull %s: upstream status %q", name, res.Status)
	}
	return nil
}

// ListModels fetches the upstream model listing from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]types.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ErrUnreachable("list models", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrStatus(resp.StatusCode, readDetail(resp.Body))
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return tags.Models, nil
}

// Version probes the upstream /api/version endpoint.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ErrUnreachable("version", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ErrStatus(resp.StatusCode, readDetail(resp.Body))
	}
	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode version response: %w", err)
	}
	return v.Version, nil
}

// Status reports upstream reachability for GET /status.
func (c *Client) Status(ctx context.Context) types.StatusResponse {
	st := types.StatusResponse{UpstreamURL: c.baseURL}
	v, err := c.Version(ctx)
	if err != nil {
		return st
	}
	st.Reachable = true
	st.UpstreamVersion = v
	return st
}

// Ready reports whether the upstream answers its version probe.
func (c *Client) Ready(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}
