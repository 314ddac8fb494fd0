package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// HRPolicyToolName is the model-facing name of the policy lookup
const HRPolicyToolName = "get_hr_policy"

const paramUserQuery = "user_query"

// PolicyContextKey is the payload key holding the retrieved policy passages
const PolicyContextKey = "context"

// Retriever produces grounding context for a query; "" means nothing matched
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// HRPolicyTool answers policy questions from the indexed HR documents
type HRPolicyTool struct {
	retriever Retriever
	params    *FieldResolver
}

// NewHRPolicyTool creates the get_hr_policy tool
func NewHRPolicyTool(retriever Retriever) *HRPolicyTool {
	return &HRPolicyTool{
		retriever: retriever,
		params: MustFieldResolver([]string{paramUserQuery}, map[string]string{
			"query":       paramUserQuery,
			"question":    paramUserQuery,
			"policy":      paramUserQuery,
			"policy_name": paramUserQuery,
			"topic":       paramUserQuery,
			"search":      paramUserQuery,
			"q":           paramUserQuery,
		}),
	}
}

// Definition describes the tool to the model
func (t *HRPolicyTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        HRPolicyToolName,
		Description: "Search the company's HR policies and return the passages most relevant to the employee's question.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				paramUserQuery: map[string]any{
					"type":        "string",
					"description": "The employee's policy question, e.g. \"maternity leave\".",
				},
			},
			"required": []string{paramUserQuery},
		},
	}
}

// Parameters resolves argument names
func (t *HRPolicyTool) Parameters() *FieldResolver {
	return t.params
}

// Execute retrieves policy context, or reports an explicit no-match
func (t *HRPolicyTool) Execute(ctx context.Context, args Arguments) (map[string]any, error) {
	query, ok := args.String(paramUserQuery)
	if !ok || query == "" {
		return nil, errors.New("user_query is required")
	}

	text := t.retriever.Retrieve(ctx, query)
	if text == "" {
		return map[string]any{
			"query":    query,
			"no_match": true,
			"message":  fmt.Sprintf("No HR policy passages matched %q.", query),
		}, nil
	}

	return map[string]any{
		"query":          query,
		PolicyContextKey: text,
	}, nil
}
