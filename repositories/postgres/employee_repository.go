package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
)

// EmployeeRepository reads and writes the employees table
type EmployeeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *DB, logger *zap.Logger) *EmployeeRepository {
	return &EmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// HealthCheck reports whether the directory database answers queries
func (r *EmployeeRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// GetByID retrieves an employee by employee id
func (r *EmployeeRepository) GetByID(ctx context.Context, employeeID string) (*models.Employee, error) {
	query := `
		SELECT employee_id, name, department, job_title, salary, leaves_taken_this_month
		FROM employees
		WHERE employee_id = $1
	`

	employee := &models.Employee{}
	err := r.db.executor(ctx).QueryRowContext(ctx, query, employeeID).Scan(
		&employee.EmployeeID,
		&employee.Name,
		&employee.Department,
		&employee.JobTitle,
		&employee.Salary,
		&employee.LeavesTakenThisMonth,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrEmployeeNotFound.Wrap(nil).WithDetail("employee_id", employeeID)
		}
		return nil, services.WrapInternal("failed to get employee", err)
	}

	return employee, nil
}

// Upsert inserts an employee or replaces the existing record with the same id
func (r *EmployeeRepository) Upsert(ctx context.Context, employee *models.Employee) error {
	query := `
		INSERT INTO employees (employee_id, name, department, job_title, salary, leaves_taken_this_month, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (employee_id) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			job_title = EXCLUDED.job_title,
			salary = EXCLUDED.salary,
			leaves_taken_this_month = EXCLUDED.leaves_taken_this_month,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		employee.EmployeeID,
		employee.Name,
		employee.Department,
		employee.JobTitle,
		employee.Salary,
		employee.LeavesTakenThisMonth,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert employee %s: %w", employee.EmployeeID, err)
	}

	r.logger.Debug("employee upserted", zap.String("employee_id", employee.EmployeeID))
	return nil
}

// Import upserts all employees in a single transaction
func (r *EmployeeRepository) Import(ctx context.Context, employees []*models.Employee) error {
	return r.db.InTransaction(ctx, func(ctx context.Context) error {
		for _, e := range employees {
			if err := r.Upsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}
