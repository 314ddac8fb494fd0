package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/tools"
)

// PartialAnswerIntro introduces tool output returned in place of a model answer
const PartialAnswerIntro = "Here is what I found so far:"

// groundingText renders the part of a successful tool result a user can read
// directly: retrieved policy passages or employee record fields. Anything else is "".
func groundingText(result models.ToolResult) string {
	if result.IsError {
		return ""
	}
	payload, ok := result.Payload.(map[string]any)
	if !ok {
		return ""
	}

	if text, ok := payload[tools.PolicyContextKey].(string); ok {
		return strings.TrimSpace(text)
	}

	info, ok := payload[tools.EmployeeInfoKey].(map[string]any)
	if !ok || len(info) == 0 {
		return ""
	}
	fields := make([]string, 0, len(info))
	for field := range info {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	lines := make([]string, len(fields))
	for i, field := range fields {
		lines[i] = fmt.Sprintf("%s: %v", strings.ReplaceAll(field, "_", " "), info[field])
	}
	return strings.Join(lines, "\n")
}

// partialAnswer picks the best answer available when the round cap is reached
func partialAnswer(lastText, lastGrounding string) string {
	switch {
	case lastText != "":
		return lastText
	case lastGrounding != "":
		return PartialAnswerIntro + "\n\n" + lastGrounding
	default:
		return FallbackAnswer
	}
}
