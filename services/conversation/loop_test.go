package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/providers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/tools"
)

// scriptedProvider replays responses in order and records every request
type scriptedProvider struct {
	responses []*providers.ChatResponse
	err       error
	requests  []providers.ChatRequest
	// repeat keeps returning the last response once the script runs out
	repeat bool
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	recorded := *req
	recorded.Messages = append([]models.Message(nil), req.Messages...)
	p.requests = append(p.requests, recorded)

	if p.err != nil {
		return nil, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.responses) {
		if !p.repeat || len(p.responses) == 0 {
			return nil, fmt.Errorf("unexpected call %d", i+1)
		}
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

func answer(content string) *providers.ChatResponse {
	return &providers.ChatResponse{Content: content}
}

func toolCall(name, args string) *providers.ChatResponse {
	return &providers.ChatResponse{ToolCalls: []models.ToolCallRequest{{Name: name, Arguments: json.RawMessage(args)}}}
}

type employeeStore map[string]*models.Employee

func (s employeeStore) GetByID(_ context.Context, id string) (*models.Employee, error) {
	if e, ok := s[id]; ok {
		return e, nil
	}
	return nil, services.ErrEmployeeNotFound
}

type retrieverFunc func(ctx context.Context, query string) string

func (f retrieverFunc) Retrieve(ctx context.Context, query string) string { return f(ctx, query) }

func newRegistry(t *testing.T, retrieve retrieverFunc) *tools.Registry {
	t.Helper()
	store := employeeStore{"1": {
		EmployeeID:           "1",
		Name:                 "John Doe",
		Department:           "IT",
		JobTitle:             "Software Engineer",
		Salary:               75000,
		LeavesTakenThisMonth: 2,
	}}
	if retrieve == nil {
		retrieve = func(context.Context, string) string { return "" }
	}
	registry, err := tools.NewRegistry(zap.NewNop(), nil,
		tools.NewEmployeeDataTool(store, zap.NewNop()),
		tools.NewHRPolicyTool(retrieve),
	)
	require.NoError(t, err)
	return registry
}

func userMessage(content string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: content}}
}

func TestLoop_ToolFreeConversation(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{answer("  Hello there!  \n")}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
	require.NoError(t, err)

	assert.Len(t, provider.requests, 1)
	assert.Equal(t, "Hello there!", result.Answer.Content)
	assert.Equal(t, models.RoleAssistant, result.Answer.Role)
	assert.Equal(t, 0, result.Rounds)
	assert.False(t, result.Incomplete)
	assert.NotEqual(t, "", result.ID.String())
	assert.Len(t, result.Messages, 2)
}

func TestLoop_LeavesScenario(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		toolCall(tools.EmployeeDataToolName, `{"fields":["leaves_taken_this_month"]}`),
		answer("You have taken 2 leaves this month."),
	}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{
		Messages:   userMessage("How many leaves have I taken?"),
		EmployeeID: "1",
	})
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	second := provider.requests[1].Messages
	require.Len(t, second, 2)
	assert.Equal(t, models.RoleFunction, second[1].Role)
	assert.Equal(t, tools.EmployeeDataToolName, second[1].Name)
	assert.JSONEq(t, `{"employee_info":{"leaves_taken_this_month":2},"invalid_fields":[]}`, second[1].Content)

	assert.Equal(t, "You have taken 2 leaves this month.", result.Answer.Content)
	assert.Equal(t, 1, result.Rounds)
	assert.False(t, result.Incomplete)
}

func TestLoop_PolicyNoMatchScenario(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		toolCall(tools.HRPolicyToolName, `{"user_query":"maternity leave"}`),
		answer("I could not find a maternity leave policy. Please contact HR."),
	}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("What is the maternity leave policy?")})
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	for _, req := range provider.requests {
		for _, m := range req.Messages {
			assert.NotEqual(t, models.RoleSystem, m.Role)
		}
	}

	fn := provider.requests[1].Messages[1]
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(fn.Content), &payload))
	assert.Equal(t, true, payload["no_match"])
	assert.Equal(t, "maternity leave", payload["query"])
	assert.Equal(t, "I could not find a maternity leave policy. Please contact HR.", result.Answer.Content)
}

func TestLoop_UnknownToolDoesNotFail(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		toolCall("get_weather", `{}`),
		answer("I can't check the weather."),
	}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("weather?")})
	require.NoError(t, err)

	fn := provider.requests[1].Messages[1]
	assert.Equal(t, "get_weather", fn.Name)
	assert.JSONEq(t, `{"error":"tool get_weather not recognized"}`, fn.Content)
	assert.Equal(t, "I can't check the weather.", result.Answer.Content)
}

func TestLoop_MultipleCallsDispatchedInOrder(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{ToolCalls: []models.ToolCallRequest{
			{Name: tools.EmployeeDataToolName, Arguments: json.RawMessage(`{"fields":"department"}`)},
			{Name: tools.HRPolicyToolName, Arguments: json.RawMessage(`"{\"user_query\":\"remote work\"}"`)},
		}},
		answer("done"),
	}}
	retrieve := retrieverFunc(func(context.Context, string) string { return "Remote work needs manager approval." })
	loop := NewLoop(provider, newRegistry(t, retrieve), DefaultConfig(), zap.NewNop(), nil)

	_, err := loop.Run(context.Background(), Request{Messages: userMessage("q"), EmployeeID: "1"})
	require.NoError(t, err)

	msgs := provider.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, tools.EmployeeDataToolName, msgs[1].Name)
	assert.Equal(t, tools.HRPolicyToolName, msgs[2].Name)
	assert.Contains(t, msgs[2].Content, "Remote work needs manager approval.")
}

func TestLoop_RoundCap(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*providers.ChatResponse{toolCall(tools.HRPolicyToolName, `{"user_query":"leave"}`)},
		repeat:    true,
	}
	cfg := DefaultConfig()
	cfg.MaxRounds = 3
	reg := prometheus.NewRegistry()
	loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), observability.NewMetrics(reg))

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("loop forever")})
	require.NoError(t, err)

	assert.Len(t, provider.requests, cfg.MaxRounds+1)
	assert.Equal(t, cfg.MaxRounds, result.Rounds)
	assert.True(t, result.Incomplete)
	assert.Equal(t, FallbackAnswer+"\n\n"+IncompleteNotice, result.Answer.Content)

	count, err := testutil.GatherAndCount(reg, "hr_assistant_conversations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoop_RoundCapKeepsLatestText(t *testing.T) {
	resp := toolCall(tools.HRPolicyToolName, `{"user_query":"leave"}`)
	resp.Content = "Annual leave is 24 days."
	provider := &scriptedProvider{responses: []*providers.ChatResponse{resp}, repeat: true}
	cfg := DefaultConfig()
	cfg.MaxRounds = 1
	loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("leave?")})
	require.NoError(t, err)

	assert.Len(t, provider.requests, 2)
	assert.Equal(t, "Annual leave is 24 days.\n\n"+IncompleteNotice, result.Answer.Content)
}

func TestLoop_RoundCapAnswersFromToolContext(t *testing.T) {
	t.Run("policy passages", func(t *testing.T) {
		provider := &scriptedProvider{
			responses: []*providers.ChatResponse{toolCall(tools.HRPolicyToolName, `{"user_query":"annual leave"}`)},
			repeat:    true,
		}
		cfg := DefaultConfig()
		cfg.MaxRounds = 2
		retrieve := retrieverFunc(func(context.Context, string) string { return "Annual leave is 24 days." })
		loop := NewLoop(provider, newRegistry(t, retrieve), cfg, zap.NewNop(), nil)

		result, err := loop.Run(context.Background(), Request{Messages: userMessage("annual leave?")})
		require.NoError(t, err)

		assert.True(t, result.Incomplete)
		assert.Equal(t,
			PartialAnswerIntro+"\n\nAnnual leave is 24 days.\n\n"+IncompleteNotice,
			result.Answer.Content)
	})

	t.Run("employee fields", func(t *testing.T) {
		provider := &scriptedProvider{
			responses: []*providers.ChatResponse{toolCall(tools.EmployeeDataToolName, `{"fields":["department","leaves_taken_this_month"]}`)},
			repeat:    true,
		}
		cfg := DefaultConfig()
		cfg.MaxRounds = 1
		loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), nil)

		result, err := loop.Run(context.Background(), Request{Messages: userMessage("my details"), EmployeeID: "1"})
		require.NoError(t, err)

		assert.Equal(t,
			PartialAnswerIntro+"\n\ndepartment: IT\nleaves taken this month: 2\n\n"+IncompleteNotice,
			result.Answer.Content)
	})

	t.Run("errors are not grounding", func(t *testing.T) {
		provider := &scriptedProvider{
			responses: []*providers.ChatResponse{toolCall(tools.EmployeeDataToolName, `{"fields":["salary"]}`)},
			repeat:    true,
		}
		cfg := DefaultConfig()
		cfg.MaxRounds = 1
		loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), nil)

		result, err := loop.Run(context.Background(), Request{Messages: userMessage("salary?")})
		require.NoError(t, err)

		assert.Equal(t, FallbackAnswer+"\n\n"+IncompleteNotice, result.Answer.Content)
	})
}

func TestGroundingText(t *testing.T) {
	tests := []struct {
		name   string
		result models.ToolResult
		want   string
	}{
		{
			name:   "policy context",
			result: models.ToolResult{Payload: map[string]any{tools.PolicyContextKey: " Remote work needs approval. "}},
			want:   "Remote work needs approval.",
		},
		{
			name:   "no match",
			result: models.ToolResult{Payload: map[string]any{"no_match": true}},
		},
		{
			name:   "empty employee info",
			result: models.ToolResult{Payload: map[string]any{tools.EmployeeInfoKey: map[string]any{}}},
		},
		{
			name:   "error result",
			result: models.NewToolError("get_hr_policy", "user_query is required"),
		},
		{
			name:   "non-map payload",
			result: models.ToolResult{Payload: "text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, groundingText(tt.result))
		})
	}
}

func TestLoop_ZeroRoundsNeverDispatches(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{toolCall("x", `{}`)}}
	cfg := DefaultConfig()
	cfg.MaxRounds = 0
	loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
	require.NoError(t, err)
	assert.Len(t, provider.requests, 1)
	assert.True(t, result.Incomplete)
}

func TestLoop_EmptyAnswerUsesFallback(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{answer("   ")}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	result, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer.Content)
	assert.False(t, result.Incomplete)
}

func TestLoop_GatewayFailure(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		provider := &scriptedProvider{err: providers.NewProviderError("ollama", "HTTP_STATUS", "ollama returned status 500", 500, nil)}
		loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

		result, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, services.IsExternalError(err))
		assert.Equal(t, "scripted", services.GetErrorDetails(err)["provider"])
	})

	t.Run("timeout", func(t *testing.T) {
		provider := &scriptedProvider{err: fmt.Errorf("calling model: %w", context.DeadlineExceeded)}
		loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

		_, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
		require.Error(t, err)
		assert.True(t, services.IsTimeoutError(err))
		assert.Equal(t, "scripted", services.GetErrorDetails(err)["provider"])
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestLoop_Validation(t *testing.T) {
	loop := NewLoop(&scriptedProvider{}, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	_, err := loop.Run(context.Background(), Request{})
	assert.True(t, services.IsValidationError(err))

	_, err = loop.Run(context.Background(), Request{Messages: []models.Message{{Role: "robot", Content: "beep"}}})
	assert.ErrorIs(t, err, services.ErrInvalidRole)
	assert.Equal(t, "robot", services.GetErrorDetails(err)["role"])
	assert.Empty(t, services.ErrInvalidRole.Details)
}

func TestLoop_RequestDefaults(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{answer("ok")}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	input := userMessage("hi")
	temperature := 0.2
	_, err := loop.Run(context.Background(), Request{
		Messages: input,
		Options:  providers.Overrides{Temperature: &temperature},
	})
	require.NoError(t, err)

	sent := provider.requests[0]
	assert.Equal(t, "llama3.1:8b", sent.Model)
	assert.Equal(t, "5m", sent.KeepAlive)
	assert.Equal(t, 0.2, sent.Options.Temperature)
	assert.Equal(t, 4096, sent.Options.MaxOutputTokens)
	assert.Equal(t, 8192, sent.Options.ContextLength)
	assert.Len(t, sent.Tools, 2)
	assert.Len(t, input, 1)
}

func TestLoop_ExplicitZeroOptions(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{answer("ok")}}
	loop := NewLoop(provider, newRegistry(t, nil), DefaultConfig(), zap.NewNop(), nil)

	zero := 0.0
	_, err := loop.Run(context.Background(), Request{
		Messages: userMessage("hi"),
		Options:  providers.Overrides{Temperature: &zero},
	})
	require.NoError(t, err)

	sent := provider.requests[0].Options
	assert.Equal(t, 0.0, sent.Temperature)
	assert.Equal(t, 4096, sent.MaxOutputTokens)
	assert.Equal(t, 8192, sent.ContextLength)
}

func TestLoop_ModelTimeoutApplied(t *testing.T) {
	var deadline time.Time
	provider := &deadlineProvider{seen: &deadline}
	cfg := DefaultConfig()
	cfg.ModelTimeout = time.Minute
	loop := NewLoop(provider, newRegistry(t, nil), cfg, zap.NewNop(), nil)

	_, err := loop.Run(context.Background(), Request{Messages: userMessage("hi")})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

type deadlineProvider struct {
	seen *time.Time
}

func (p *deadlineProvider) Name() string { return "deadline" }

func (p *deadlineProvider) IsAvailable(context.Context) bool { return true }

func (p *deadlineProvider) ChatCompletion(ctx context.Context, _ *providers.ChatRequest) (*providers.ChatResponse, error) {
	*p.seen, _ = ctx.Deadline()
	return answer("ok"), nil
}
