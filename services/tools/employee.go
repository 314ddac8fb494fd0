package tools

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
)

// EmployeeDataToolName is the model-facing name of the employee lookup
const EmployeeDataToolName = "get_employee_data"

const paramFields = "fields"

// Payload keys of get_employee_data
const (
	EmployeeInfoKey  = "employee_info"
	InvalidFieldsKey = "invalid_fields"
)

// EmployeeFieldAliases maps common spellings onto the employee allow-list
var EmployeeFieldAliases = map[string]string{
	"id":                    models.FieldEmployeeID,
	"emp_id":                models.FieldEmployeeID,
	"employee_number":       models.FieldEmployeeID,
	"staff_id":              models.FieldEmployeeID,
	"full_name":             models.FieldName,
	"employee_name":         models.FieldName,
	"dept":                  models.FieldDepartment,
	"team":                  models.FieldDepartment,
	"division":              models.FieldDepartment,
	"title":                 models.FieldJobTitle,
	"position":              models.FieldJobTitle,
	"designation":           models.FieldJobTitle,
	"role":                  models.FieldJobTitle,
	"pay":                   models.FieldSalary,
	"wage":                  models.FieldSalary,
	"compensation":          models.FieldSalary,
	"leaves":                models.FieldLeavesTakenThisMonth,
	"leaves_taken":          models.FieldLeavesTakenThisMonth,
	"leave_count":           models.FieldLeavesTakenThisMonth,
	"leaves_this_month":     models.FieldLeavesTakenThisMonth,
	"monthly_leaves":        models.FieldLeavesTakenThisMonth,
	"leaves_taken_in_month": models.FieldLeavesTakenThisMonth,
}

// EmployeeStore is the read-only employee record source
type EmployeeStore interface {
	GetByID(ctx context.Context, employeeID string) (*models.Employee, error)
}

// EmployeeDataTool exposes allow-listed fields of the caller's own employee record
type EmployeeDataTool struct {
	store  EmployeeStore
	fields *FieldResolver
	params *FieldResolver
	logger *zap.Logger
}

// NewEmployeeDataTool creates the get_employee_data tool
func NewEmployeeDataTool(store EmployeeStore, logger *zap.Logger) *EmployeeDataTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeDataTool{
		store:  store,
		fields: MustFieldResolver(models.EmployeeFields, EmployeeFieldAliases),
		params: MustFieldResolver([]string{paramFields}, map[string]string{
			"field":       paramFields,
			"field_names": paramFields,
			"columns":     paramFields,
			"attributes":  paramFields,
		}),
		logger: logger,
	}
}

// Definition describes the tool to the model
func (t *EmployeeDataTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        EmployeeDataToolName,
		Description: "Retrieve fields of the current employee's own HR record, such as department, job title, salary or leaves taken this month.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				paramFields: map[string]any{
					"type":        "array",
					"description": "Employee fields to retrieve.",
					"items": map[string]any{
						"type": "string",
						"enum": models.EmployeeFields,
					},
				},
			},
			"required": []string{paramFields},
		},
	}
}

// Parameters resolves argument names
func (t *EmployeeDataTool) Parameters() *FieldResolver {
	return t.params
}

// Execute returns the requested allow-listed fields alongside the rejected ones
func (t *EmployeeDataTool) Execute(ctx context.Context, args Arguments) (map[string]any, error) {
	names, rejectedItems, ok := args.StringList(paramFields)
	if !ok || (len(names) == 0 && len(rejectedItems) == 0) {
		return nil, errors.New("please specify which fields you want to retrieve")
	}

	resolved, invalid := t.fields.Resolve(names)
	invalid = append(invalid, rejectedItems...)

	payload := map[string]any{
		EmployeeInfoKey:  map[string]any{},
		InvalidFieldsKey: invalid,
	}
	if len(resolved) == 0 {
		return payload, nil
	}

	// Rejected names stay visible to the model when the lookup itself fails
	var details map[string]any
	if len(invalid) > 0 {
		details = map[string]any{InvalidFieldsKey: invalid}
	}

	employeeID := EmployeeIDFromContext(ctx)
	if employeeID == "" {
		return details, errors.New("employee id not provided")
	}

	employee, err := t.store.GetByID(ctx, employeeID)
	if err != nil {
		if services.IsNotFoundError(err) || services.IsValidationError(err) {
			return details, errors.New("employee not found")
		}
		t.logger.Error("employee lookup failed",
			zap.String("employee_id", employeeID),
			zap.Error(err))
		return details, errors.New("employee records are currently unavailable")
	}

	payload[EmployeeInfoKey] = employee.Project(resolved)
	return payload, nil
}
