package employee

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type EmployeeRow struct {
	ID         sql.NullString `db:"id"`
	Name       sql.NullString `db:"name"`
	Email      sql.NullString `db:"email"`
	Department sql.NullString `db:"department"`
	IsActive   sql.NullBool   `db:"is_active"`
	CreatedAt  sql.NullTime   `db:"created_at"`
}

const employeeTable = "employees"

var employeeStruct = database.NewStruct(new(EmployeeRow))

func ToEmployee(row *EmployeeRow) models.Employee {
	return models.Employee{
		ID:         row.ID.String,
		Name:       row.Name.String,
		Email:      row.Email.String,
		Department: row.Department.String,
		IsActive:   row.IsActive.Bool,
		CreatedAt:  row.CreatedAt.Time,
	}
}

type EmployeeRepository interface {
	Create(ctx context.Context, employee models.Employee) error
	GetByID(ctx context.Context, id string) (models.Employee, error)
	ListActiveByDepartment(ctx context.Context, department string) ([]models.Employee, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new employee directory repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, employee models.Employee) error {
	ctx, span := tracing.StartSpan(ctx, "EmployeeRepository.Create")
	defer span.End()

	if employee.CreatedAt == (time.Time{}) {
		employee.CreatedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(employeeTable)
	ib.Cols("id", "name", "email", "department", "is_active", "created_at")
	ib.Values(employee.ID, employee.Name, employee.Email, employee.Department, employee.IsActive, employee.CreatedAt)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", employee.ID).Error("error creating employee")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error creating employee")
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "EmployeeRepository.GetByID")
	defer span.End()

	sb := employeeStruct.SelectFrom(employeeTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var row EmployeeRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithField("id", id).Warn("Employee not found")
			return models.Employee{}, httperror.NewHTTPError(http.StatusNotFound, "employee not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("error getting employee")
		return models.Employee{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting employee")
	}

	return ToEmployee(&row), nil
}

func (r *Repository) ListActiveByDepartment(ctx context.Context, department string) ([]models.Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "EmployeeRepository.ListActiveByDepartment")
	defer span.End()

	sb := employeeStruct.SelectFrom(employeeTable)
	sb.Where(
		sb.Equal("department", department),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("id").Asc()

	query, args := sb.Build()

	var rows []EmployeeRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("department", department).Error("error listing employees")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing employees")
	}

	employees := make([]models.Employee, 0, len(rows))
	for i := range rows {
		employees = append(employees, ToEmployee(&rows[i]))
	}

	return employees, nil
}
