// Package conversation drives the model/tool exchange for one chat request.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/tools"
)

const (
	// FallbackAnswer is returned when the model produced no usable text
	FallbackAnswer = "I'm sorry, I couldn't produce an answer to that. Please try rephrasing your question."

	// IncompleteNotice is appended when the round cap cut the tool exchange short
	IncompleteNotice = "Note: this answer may be incomplete because the assistant reached its tool-use limit."
)

// Dispatcher executes tool calls requested by the model
type Dispatcher interface {
	Definitions() []models.ToolDefinition
	Dispatch(ctx context.Context, call models.ToolCallRequest) models.ToolResult
}

// Config holds loop limits and generation defaults
type Config struct {
	DefaultModel string
	MaxRounds    int
	ModelTimeout time.Duration
	KeepAlive    string
	Options      providers.Options
}

// DefaultConfig returns the standard loop configuration
func DefaultConfig() Config {
	return Config{
		DefaultModel: "llama3.1:8b",
		MaxRounds:    5,
		ModelTimeout: 120 * time.Second,
		KeepAlive:    "5m",
		Options: providers.Options{
			Temperature:     0.8,
			MaxOutputTokens: 4096,
			ContextLength:   8192,
		},
	}
}

// Request is one chat turn from the client
type Request struct {
	Model      string
	Messages   []models.Message
	Options    providers.Overrides
	EmployeeID string
}

// Result is the outcome of a conversation
type Result struct {
	ID         uuid.UUID
	Answer     models.Message
	Messages   []models.Message
	Rounds     int
	Incomplete bool
}

// Loop alternates model calls and tool dispatch until the model answers
type Loop struct {
	provider providers.Provider
	tools    Dispatcher
	config   Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewLoop creates a conversation loop. A negative MaxRounds disables tool dispatch.
func NewLoop(provider providers.Provider, dispatcher Dispatcher, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Loop {
	if cfg.MaxRounds < 0 {
		cfg.MaxRounds = 0
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultConfig().DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		provider: provider,
		tools:    dispatcher,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes the conversation. The request messages are not modified.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, services.ErrEmptyMessages
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			return nil, services.ErrInvalidRole.Wrap(nil).WithDetail("role", string(m.Role))
		}
	}

	result := &Result{ID: uuid.New()}
	logger := l.logger.With(zap.String("conversation_id", result.ID.String()))

	transcript := make([]models.Message, len(req.Messages), len(req.Messages)+4)
	copy(transcript, req.Messages)

	chatReq := providers.ChatRequest{
		Model:     req.Model,
		Tools:     l.tools.Definitions(),
		Options:   req.Options.Apply(l.config.Options),
		KeepAlive: l.config.KeepAlive,
	}
	if chatReq.Model == "" {
		chatReq.Model = l.config.DefaultModel
	}

	ctx = tools.WithEmployeeID(ctx, req.EmployeeID)
	var lastText, lastGrounding string

	for {
		chatReq.Messages = transcript
		resp, err := l.callModel(ctx, &chatReq)
		if err != nil {
			logger.Error("model call failed",
				zap.String("model", chatReq.Model),
				zap.Int("round", result.Rounds),
				zap.Error(err))
			l.metrics.ObserveConversation(result.Rounds, observability.OutcomeError)
			return nil, l.gatewayError(err)
		}

		text := strings.TrimSpace(resp.Content)
		if text != "" {
			lastText = text
		}

		if !resp.HasToolCalls() {
			outcome := observability.OutcomeAnswered
			if text == "" {
				text = FallbackAnswer
				outcome = observability.OutcomeFallback
			}
			l.finish(result, transcript, text)
			logger.Info("conversation answered", zap.Int("rounds", result.Rounds), zap.String("outcome", outcome))
			l.metrics.ObserveConversation(result.Rounds, outcome)
			return result, nil
		}

		if result.Rounds >= l.config.MaxRounds {
			result.Incomplete = true
			l.finish(result, transcript, partialAnswer(lastText, lastGrounding)+"\n\n"+IncompleteNotice)
			logger.Warn("tool round limit reached",
				zap.Int("rounds", result.Rounds),
				zap.Int("pending_calls", len(resp.ToolCalls)))
			l.metrics.ObserveConversation(result.Rounds, observability.OutcomeIncomplete)
			return result, nil
		}

		result.Rounds++
		for _, call := range resp.ToolCalls {
			toolResult := l.tools.Dispatch(ctx, call)
			logger.Debug("tool dispatched",
				zap.Int("round", result.Rounds),
				zap.String("tool", call.Name),
				zap.Bool("is_error", toolResult.IsError))
			if text := groundingText(toolResult); text != "" {
				lastGrounding = text
			}
			transcript = append(transcript, models.NewFunctionMessage(toolResult))
		}
	}
}

func (l *Loop) callModel(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if l.config.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := l.provider.ChatCompletion(ctx, req)
	l.metrics.ObserveModelCall(time.Since(start), err)
	return resp, err
}

func (l *Loop) gatewayError(err error) error {
	sentinel := services.ErrModelUnavailable
	if providers.IsTimeout(err) {
		sentinel = services.ErrModelTimeout
	}
	return sentinel.Wrap(err).WithDetail("provider", l.provider.Name())
}

func (l *Loop) finish(result *Result, transcript []models.Message, answer string) {
	result.Answer = models.Message{Role: models.RoleAssistant, Content: answer}
	result.Messages = append(transcript, result.Answer)
}
