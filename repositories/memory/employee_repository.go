// Package memory holds an in-process employee directory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
)

// SampleEmployees is the development directory
func SampleEmployees() []models.Employee {
	return []models.Employee{
		{
			EmployeeID:           "1",
			Name:                 "John Doe",
			Department:           "IT",
			JobTitle:             "Software Engineer",
			Salary:               75000,
			LeavesTakenThisMonth: 2,
		},
	}
}

// EmployeeRepository is a map-backed employee directory safe for concurrent use
type EmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]models.Employee
}

// NewEmployeeRepository creates a directory holding employees
func NewEmployeeRepository(employees ...models.Employee) *EmployeeRepository {
	r := &EmployeeRepository{employees: make(map[string]models.Employee, len(employees))}
	for _, e := range employees {
		r.employees[e.EmployeeID] = e
	}
	return r
}

// GetByID returns a copy of the stored record
func (r *EmployeeRepository) GetByID(_ context.Context, employeeID string) (*models.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.employees[employeeID]
	if !ok {
		return nil, services.ErrEmployeeNotFound.Wrap(nil).WithDetail("employee_id", employeeID)
	}
	return &e, nil
}

// Upsert stores employee, replacing any record with the same id
func (r *EmployeeRepository) Upsert(_ context.Context, employee *models.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees[employee.EmployeeID] = *employee
	return nil
}

// Len returns the number of employees
func (r *EmployeeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.employees)
}
