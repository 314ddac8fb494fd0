package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/middleware"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/conversation"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/utils"
)

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Model      string        `json:"model,omitempty"`
	Messages   []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Options    *ChatOptions  `json:"options,omitempty"`
	EmployeeID string        `json:"employee_id,omitempty" validate:"max=64"`
}

// ChatMessage is one transcript entry sent by the client
type ChatMessage struct {
	Role    string `json:"role" validate:"required,chat_role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content" validate:"required"`
}

// ChatOptions overrides generation defaults for one request.
// num_predict and num_ctx are accepted as Ollama-style aliases.
type ChatOptions struct {
	Temperature     *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty" validate:"omitempty,gte=1"`
	ContextLength   *int     `json:"context_length,omitempty" validate:"omitempty,gte=1"`
	NumPredict      *int     `json:"num_predict,omitempty" validate:"omitempty,gte=1"`
	NumCtx          *int     `json:"num_ctx,omitempty" validate:"omitempty,gte=1"`
}

// ChatResponse is the data of a successful chat turn
type ChatResponse struct {
	ID         string        `json:"id"`
	Message    ChatMessage   `json:"message"`
	Rounds     int           `json:"rounds"`
	Incomplete bool          `json:"incomplete"`
	Messages   []ChatMessage `json:"messages,omitempty"`
}

// ChatService runs a conversation to its final answer
type ChatService interface {
	Run(ctx context.Context, req conversation.Request) (*conversation.Result, error)
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ChatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, "Invalid messages format", err, h.logger)
		return
	}

	// A verified token always decides whose records the tools may read
	employeeID := req.EmployeeID
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		employeeID = claims.EmployeeID
	}

	h.logger.Debug("processing chat request",
		zap.String("request_id", requestID),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("employee_bound", employeeID != ""))

	result, err := h.service.Run(ctx, conversation.Request{
		Model:      req.Model,
		Messages:   toModelMessages(req.Messages),
		Options:    req.Options.toOverrides(),
		EmployeeID: employeeID,
	})
	if err != nil {
		h.logger.Error("failed to process chat request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	response := ChatResponse{
		ID:         result.ID.String(),
		Message:    fromModelMessage(result.Answer),
		Rounds:     result.Rounds,
		Incomplete: result.Incomplete,
	}
	if r.URL.Query().Get("transcript") == "true" {
		response.Messages = make([]ChatMessage, len(result.Messages))
		for i, m := range result.Messages {
			response.Messages[i] = fromModelMessage(m)
		}
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write chat response", zap.Error(err))
	}
}

// toOverrides keeps only the options the client set. The canonical names win over aliases.
func (o *ChatOptions) toOverrides() providers.Overrides {
	if o == nil {
		return providers.Overrides{}
	}
	overrides := providers.Overrides{
		Temperature:     o.Temperature,
		MaxOutputTokens: o.MaxOutputTokens,
		ContextLength:   o.ContextLength,
	}
	if overrides.MaxOutputTokens == nil {
		overrides.MaxOutputTokens = o.NumPredict
	}
	if overrides.ContextLength == nil {
		overrides.ContextLength = o.NumCtx
	}
	return overrides
}

func toModelMessages(in []ChatMessage) []models.Message {
	out := make([]models.Message, len(in))
	for i, m := range in {
		out[i] = models.Message{
			Role:    models.Role(m.Role),
			Name:    m.Name,
			Content: m.Content,
		}
	}
	return out
}

func fromModelMessage(m models.Message) ChatMessage {
	return ChatMessage{
		Role:    string(m.Role),
		Name:    m.Name,
		Content: m.Content,
	}
}
