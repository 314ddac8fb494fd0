package tools

import "context"

type contextKey string

const employeeIDKey contextKey = "employee_id"

// WithEmployeeID binds the employee a conversation is held on behalf of
func WithEmployeeID(ctx context.Context, employeeID string) context.Context {
	return context.WithValue(ctx, employeeIDKey, employeeID)
}

// EmployeeIDFromContext returns the bound employee id, or "" when none
func EmployeeIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(employeeIDKey).(string); ok {
		return id
	}
	return ""
}
