package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name    string
		err     *ProviderError
		wantMsg string
	}{
		{
			name:    "with cause",
			err:     NewProviderError("ollama", "HTTP_ERROR", "HTTP request failed", 0, cause),
			wantMsg: "HTTP request failed: connection refused",
		},
		{
			name:    "without cause",
			err:     NewProviderError("ollama", "HTTP_STATUS", "ollama returned status 500", 500, nil),
			wantMsg: "ollama returned status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}

	wrapped := NewProviderError("ollama", "HTTP_ERROR", "failed", 0, cause)
	assert.ErrorIs(t, wrapped, cause)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"net timeout", NewProviderError("ollama", "HTTP_ERROR", "failed", 0, timeoutErr{}), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeout(tt.err))
		})
	}
}

func TestChatResponse_HasToolCalls(t *testing.T) {
	assert.False(t, (&ChatResponse{Content: "hi"}).HasToolCalls())
	assert.True(t, (&ChatResponse{ToolCalls: []models.ToolCallRequest{{Name: "get_hr_policy"}}}).HasToolCalls())
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()

	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.NotZero(t, cfg.Timeout)
	assert.NotNil(t, cfg.Headers)
}

func TestOverrides_Apply(t *testing.T) {
	defaults := Options{Temperature: 0.8, MaxOutputTokens: 4096, ContextLength: 8192}

	t.Run("absent fields keep defaults", func(t *testing.T) {
		assert.Equal(t, defaults, Overrides{}.Apply(defaults))
	})

	t.Run("explicit zero wins", func(t *testing.T) {
		zero := 0.0
		got := Overrides{Temperature: &zero}.Apply(defaults)
		assert.Equal(t, 0.0, got.Temperature)
		assert.Equal(t, 4096, got.MaxOutputTokens)
	})

	t.Run("all fields set", func(t *testing.T) {
		temp, predict, ctxLen := 0.2, 100, 2048
		got := Overrides{Temperature: &temp, MaxOutputTokens: &predict, ContextLength: &ctxLen}.Apply(defaults)
		assert.Equal(t, Options{Temperature: 0.2, MaxOutputTokens: 100, ContextLength: 2048}, got)
	})
}
