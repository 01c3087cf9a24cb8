package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmproxy/pkg/types"
)

// Service defines the upstream operations required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, model, prompt string, w io.Writer, flush func()) error
	GenerateBlocking(ctx context.Context, model, prompt string) (json.RawMessage, error)
	Pull(ctx context.Context, name string) error
	ListModels(ctx context.Context) ([]types.Model, error)
	Status(ctx context.Context) types.StatusResponse
	Ready(ctx context.Context) bool
}

// countingWriter tracks whether any response bytes were relayed, so error
// mapping only happens while the status line is still unsent.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   corsAllowedMethods,
			AllowedHeaders:   corsAllowedHeaders,
			AllowCredentials: true,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Post("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSONBody[types.GenerateRequest](w, r)
		if !ok {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		model := req.Model
		if model == "" {
			model = defaultModel
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		logEvent(r, lvl, "generate start", 0, 0, nil)

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		if !req.Streaming() {
			raw, err := svc.GenerateBlocking(ctx, model, req.Prompt)
			if err != nil {
				IncrementUpstreamError("generate")
				status := statusFor(err, http.StatusInternalServerError)
				if r.Context().Err() == nil && serverBaseCtx.Err() == nil {
					writeJSONError(w, status, err.Error())
				}
				logEvent(r, lvl, "generate end", status, time.Since(start), err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
			logEvent(r, lvl, "generate end", http.StatusOK, time.Since(start), nil)
			return
		}

		// Stream path: relay extracted text chunks as they arrive.
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		writer := io.Writer(w)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, chunkLogWriter{})
		}
		cw := &countingWriter{w: writer}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := svc.Generate(ctx, model, req.Prompt, cw, flush); err != nil {
			// Client disconnect or shutdown: nothing useful left to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				logEvent(r, lvl, "generate end", 0, time.Since(start), err)
				return
			}
			IncrementUpstreamError("generate")
			if cw.n == 0 {
				status := statusFor(err, http.StatusInternalServerError)
				writeJSONError(w, status, err.Error())
				logEvent(r, lvl, "generate end", status, time.Since(start), err)
				return
			}
			// Headers already sent; the truncated body is all we can signal.
			logEvent(r, lvl, "generate aborted mid-stream", http.StatusOK, time.Since(start), err)
			return
		}
		logEvent(r, lvl, "generate end", http.StatusOK, time.Since(start), nil)
	})

	r.Post("/api/models/download", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSONBody[types.DownloadRequest](w, r)
		if !ok {
			return
		}
		name := strings.TrimSpace(req.LLMName)
		if name == "" {
			writeJSONError(w, http.StatusBadRequest, "llm_name is required")
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Pull(ctx, name); err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			IncrementUpstreamError("pull")
			// Downloads report 500 for upstream failures; only transport
			// failures surface as 502 via the error's own status code.
			status := http.StatusInternalServerError
			if he, ok := err.(HTTPError); ok && he.StatusCode() == http.StatusBadGateway {
				status = http.StatusBadGateway
			}
			writeJSONError(w, status, "failed to download model: "+err.Error())
			logEvent(r, lvl, "download end", status, time.Since(start), err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.DownloadResponse{Message: "Model " + name + " downloaded successfully"})
		logEvent(r, lvl, "download end", http.StatusOK, time.Since(start), nil)
	})

	r.Get("/api/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.ListModels(r.Context())
		if err != nil {
			IncrementUpstreamError("list")
			status := http.StatusInternalServerError
			if he, ok := err.(HTTPError); ok && he.StatusCode() == http.StatusBadGateway {
				status = http.StatusBadGateway
			}
			writeJSONError(w, status, "failed to list models: "+err.Error())
			return
		}
		if models == nil {
			models = []types.Model{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status(r.Context())); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces the JSON content type and body limit, decoding into T.
func decodeJSONBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return v, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		// Oversized bodies also land here; 400 avoids leaking limit details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}

// statusFor extracts an HTTP status from err, or returns fallback.
func statusFor(err error, fallback int) int {
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return fallback
}

// logEvent emits a request lifecycle line at info or above.
func logEvent(r *http.Request, lvl LogLevel, msg string, status int, dur time.Duration, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path)
		if status != 0 {
			z = z.Int("status", status)
		}
		if dur != 0 {
			z = z.Dur("dur", dur)
		}
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg(msg)
		return
	}
	if err != nil {
		log.Printf("%s path=%s status=%d dur=%s err=%v", msg, r.URL.Path, status, dur, err)
		return
	}
	log.Printf("%s path=%s status=%d dur=%s", msg, r.URL.Path, status, dur)
}
