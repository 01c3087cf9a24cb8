package types

// Model mirrors one entry of the upstream Ollama /api/tags listing.
type Model struct {
	// Model tag as known to the upstream server.
	// example: llama2:latest
	Name string `json:"name" example:"llama2:latest"`
	// Canonical model identifier, when the upstream reports one.
	// example: llama2:latest
	Model string `json:"model,omitempty" example:"llama2:latest"`
	// Last modification timestamp reported by the upstream.
	// example: 2024-05-04T14:31:00.000000000Z
	ModifiedAt string `json:"modified_at,omitempty" example:"2024-05-04T14:31:00.000000000Z"`
	// Blob size in bytes.
	// example: 3825819519
	Size int64 `json:"size,omitempty" example:"3825819519"`
	// Content digest of the model blob.
	// example: sha256:78e26419b446
	Digest string `json:"digest,omitempty" example:"sha256:78e26419b446"`
	// Per-model metadata passed through from the upstream.
	Details *ModelDetails `json:"details,omitempty"`
}

// ModelDetails carries the upstream's per-model metadata verbatim.
type ModelDetails struct {
	// example: gguf
	Format string `json:"format,omitempty" example:"gguf"`
	// example: llama
	Family   string   `json:"family,omitempty" example:"llama"`
	Families []string `json:"families,omitempty"`
	// example: 7B
	ParameterSize string `json:"parameter_size,omitempty" example:"7B"`
	// example: Q4_0
	QuantizationLevel string `json:"quantization_level,omitempty" example:"Q4_0"`
}

// StatusResponse summarizes the proxy and its upstream for GET /status.
type StatusResponse struct {
	// Base URL of the upstream inference server.
	// example: http://localhost:11434
	UpstreamURL string `json:"upstream_url" example:"http://localhost:11434"`
	// Whether the upstream answered the last version probe.
	// example: true
	Reachable bool `json:"reachable" example:"true"`
	// Upstream server version, when reachable.
	// example: 0.1.32
	UpstreamVersion string `json:"upstream_version,omitempty" example:"0.1.32"`
	// Number of model listings currently held in the TTL cache.
	// example: 1
	ModelsCached int `json:"models_cached" example:"1"`
}
