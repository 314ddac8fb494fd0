package models

// Employee fields that may be exposed to the model
const (
	FieldEmployeeID           = "employee_id"
	FieldName                 = "name"
	FieldDepartment           = "department"
	FieldJobTitle             = "job_title"
	FieldSalary               = "salary"
	FieldLeavesTakenThisMonth = "leaves_taken_this_month"
)

// EmployeeFields is the allow-list of exposable employee fields, in schema order
var EmployeeFields = []string{
	FieldEmployeeID,
	FieldName,
	FieldDepartment,
	FieldJobTitle,
	FieldSalary,
	FieldLeavesTakenThisMonth,
}

// Employee is the read-only HR record of one employee
type Employee struct {
	EmployeeID           string  `json:"employee_id" db:"employee_id"`
	Name                 string  `json:"name" db:"name"`
	Department           string  `json:"department" db:"department"`
	JobTitle             string  `json:"job_title" db:"job_title"`
	Salary               float64 `json:"salary" db:"salary"`
	LeavesTakenThisMonth int     `json:"leaves_taken_this_month" db:"leaves_taken_this_month"`
}

// TableName returns the table name for the Employee model
func (Employee) TableName() string {
	return "employees"
}

// Project returns the requested fields of the record keyed by field name.
// Names outside the allow-list are skipped.
func (e *Employee) Project(fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f {
		case FieldEmployeeID:
			out[f] = e.EmployeeID
		case FieldName:
			out[f] = e.Name
		case FieldDepartment:
			out[f] = e.Department
		case FieldJobTitle:
			out[f] = e.JobTitle
		case FieldSalary:
			out[f] = e.Salary
		case FieldLeavesTakenThisMonth:
			out[f] = e.LeavesTakenThisMonth
		}
	}
	return out
}
