package providers

import (
	"context"
	"errors"
	"time"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// Provider is a chat model endpoint able to request tool calls
type Provider interface {
	// Name returns the provider name (e.g., "ollama")
	Name() string

	// ChatCompletion performs a single blocking chat request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool
}

// ChatRequest is one round of a conversation sent to the model
type ChatRequest struct {
	// Model identifier (e.g., "llama3.1:8b")
	Model string

	// Messages in the conversation
	Messages []models.Message

	// Tools the model may call
	Tools []models.ToolDefinition

	// Options tune generation
	Options Options

	// KeepAlive controls how long the endpoint keeps the model loaded
	KeepAlive string
}

// Options are generation parameters forwarded with each request
type Options struct {
	Temperature     float64
	MaxOutputTokens int
	ContextLength   int
}

// Overrides are per-request generation settings. Nil fields keep the defaults.
type Overrides struct {
	Temperature     *float64
	MaxOutputTokens *int
	ContextLength   *int
}

// Apply returns defaults with every set field of o replacing its counterpart
func (o Overrides) Apply(defaults Options) Options {
	if o.Temperature != nil {
		defaults.Temperature = *o.Temperature
	}
	if o.MaxOutputTokens != nil {
		defaults.MaxOutputTokens = *o.MaxOutputTokens
	}
	if o.ContextLength != nil {
		defaults.ContextLength = *o.ContextLength
	}
	return defaults
}

// ChatResponse is the model's answer for one round.
// Exactly one of Content or ToolCalls is meaningful.
type ChatResponse struct {
	Model     string
	Content   string
	ToolCalls []models.ToolCallRequest
	Latency   time.Duration
}

// HasToolCalls reports whether the model asked for tools instead of answering
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// BaseURL for the API
	BaseURL string

	// Timeout for requests
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		BaseURL: "http://localhost:11434",
		Timeout: 120 * time.Second,
		Headers: make(map[string]string),
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// IsTimeout reports whether err came from a deadline or client timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
