package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// IgnoredParametersKey is the payload key listing argument names a tool did not recognise
const IgnoredParametersKey = "ignored_parameters"

var (
	// ErrDuplicateTool is returned when two tools share a name
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidTool is returned for a nil tool or one without a name
	ErrInvalidTool = errors.New("invalid tool")
)

// Tool is a read-only operation the model may request
type Tool interface {
	// Definition describes the tool to the model
	Definition() models.ToolDefinition

	// Parameters resolves incoming argument names to the tool's parameters
	Parameters() *FieldResolver

	// Execute runs the tool. A returned error becomes an error result and any
	// payload returned with it is kept as the result's details.
	Execute(ctx context.Context, args Arguments) (map[string]any, error)
}

// Registry is the fixed mapping from tool name to Tool
type Registry struct {
	tools   map[string]Tool
	order   []string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRegistry builds a registry over tools, keeping their order for Definitions
func NewRegistry(logger *zap.Logger, metrics *observability.Metrics, tools ...Tool) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		logger:  logger,
		metrics: metrics,
	}

	for _, t := range tools {
		if t == nil {
			return nil, ErrInvalidTool
		}
		name := t.Definition().Name
		if name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidTool)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)

		logger.Info("tool registered", zap.String("tool", name))
	}

	return r, nil
}

// Definitions returns the tool definitions in registration order
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Names returns the registered tool names
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	return len(r.order)
}

// Dispatch runs one tool call. It always returns a result; failures are error results.
func (r *Registry) Dispatch(ctx context.Context, call models.ToolCallRequest) (result models.ToolResult) {
	start := time.Now()
	label := "unknown"

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked",
				zap.String("tool", call.Name),
				zap.Any("panic", p))
			result = models.NewToolError(call.Name, "tool %s failed unexpectedly", call.Name)
		}
		r.metrics.ObserveToolCall(label, result.IsError)
		r.logger.Debug("tool dispatched",
			zap.String("tool", call.Name),
			zap.Bool("is_error", result.IsError),
			zap.Duration("duration", time.Since(start)))
	}()

	t, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("unknown tool requested", zap.String("tool", call.Name))
		return models.NewToolError(call.Name, "tool %s not recognized", call.Name)
	}
	label = call.Name

	raw, err := parseArguments(call.Arguments)
	if err != nil {
		r.logger.Warn("invalid tool arguments",
			zap.String("tool", call.Name),
			zap.ByteString("arguments", call.Arguments),
			zap.Error(err))
		return models.NewToolError(call.Name, "invalid arguments for tool %s: %v", call.Name, err)
	}

	args := canonicalizeArguments(raw, t.Parameters())
	if len(args.Ignored) > 0 {
		r.logger.Debug("ignoring unknown tool parameters",
			zap.String("tool", call.Name),
			zap.Strings("parameters", args.Ignored))
	}

	payload, err := t.Execute(ctx, args)
	if err != nil {
		result := models.NewToolError(call.Name, "%s", err.Error())
		if len(payload) > 0 {
			result.Details = payload
		}
		return result
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if len(args.Ignored) > 0 {
		payload[IgnoredParametersKey] = args.Ignored
	}

	return models.ToolResult{Name: call.Name, Payload: payload}
}
