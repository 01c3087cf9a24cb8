package types

// GenerateRequest represents a text generation request payload.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional model tag. If empty, the server default is used.
	// example: llama2
	Model string `json:"model,omitempty" example:"llama2"`
	// If omitted or true, relay the completion incrementally as plain text.
	// When false, forward the upstream's single JSON response.
	// example: true
	Stream *bool `json:"stream,omitempty" example:"true"`
}

// Streaming reports whether the request asks for a streamed response.
// An omitted stream field means streaming.
func (r GenerateRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// DownloadRequest asks the upstream to pull a model by name.
type DownloadRequest struct {
	// Name of the model to download.
	// example: mistral
	LLMName string `json:"llm_name" example:"mistral"`
}

// DownloadResponse acknowledges a completed model download.
type DownloadResponse struct {
	// example: Model mistral downloaded successfully
	Message string `json:"message" example:"Model mistral downloaded successfully"`
}

// ModelsResponse wraps the list of models returned by GET /api/models.
type ModelsResponse struct {
	// List of models available on the upstream server.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
