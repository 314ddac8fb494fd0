package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers"
)

const (
	defaultBaseURL = "http://localhost:11434"

	// maxErrorBody caps how much of a failed response is kept in the error
	maxErrorBody = 2048
)

// Adapter implements providers.Provider for the Ollama /api/chat endpoint
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewAdapter creates a new Ollama adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "ollama"
}

// ChatCompletion sends one non-streaming chat request
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildChatRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		code := "HTTP_ERROR"
		if providers.IsTimeout(err) {
			code = "TIMEOUT"
		}
		return nil, providers.NewProviderError(a.Name(), code, "HTTP request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, err)
	}
	if chatResp.Error != "" {
		return nil, providers.NewProviderError(a.Name(), "MODEL_ERROR", chatResp.Error, httpResp.StatusCode, nil)
	}

	return a.convertResponse(&chatResp, time.Since(startTime)), nil
}

// IsAvailable checks the version endpoint
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/api/version", nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (a *Adapter) buildChatRequest(req *providers.ChatRequest) *chatRequest {
	out := &chatRequest{
		Model:     req.Model,
		Messages:  make([]chatMessage, len(req.Messages)),
		Stream:    false,
		KeepAlive: req.KeepAlive,
		Options: chatOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.MaxOutputTokens,
			NumCtx:      req.Options.ContextLength,
		},
	}

	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]tool, len(req.Tools))
		for i, def := range req.Tools {
			out.Tools[i] = tool{Type: "function", Function: def}
		}
	}

	return out
}

func (a *Adapter) convertResponse(resp *chatResponse, latency time.Duration) *providers.ChatResponse {
	out := &providers.ChatResponse{
		Model:   resp.Model,
		Content: resp.Message.Content,
		Latency: latency,
	}

	for _, call := range resp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCallRequest{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return out
}

func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}

	return providers.NewProviderError(
		a.Name(),
		"HTTP_STATUS",
		fmt.Sprintf("ollama returned status %d: %s", statusCode, message),
		statusCode,
		nil,
	)
}

// Ollama wire types

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []tool        `json:"tools,omitempty"`
	Options   chatOptions   `json:"options"`
	Stream    bool          `json:"stream"`
	KeepAlive string        `json:"keep_alive,omitempty"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Name      string     `json:"name,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type tool struct {
	Type     string                `json:"type"`
	Function models.ToolDefinition `json:"function"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   chatMessage `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
}
