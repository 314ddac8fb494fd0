package repositories

import (
	"context"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// EmployeeRepository reads employee records.
// GetByID returns a not_found services.DomainError when no record exists.
type EmployeeRepository interface {
	GetByID(ctx context.Context, employeeID string) (*models.Employee, error)
}

// HealthChecker is implemented by stores that can report their own reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
