package faculty

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/store"
)

var ErrNotFound = errors.New("faculty member not found")

// Faculty is the domain profile attached one-to-one to an account.
type Faculty struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	EmployeeID     string    `json:"employee_id"`
	DepartmentID   string    `json:"department_id,omitempty"`
	Designation    string    `json:"designation,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	OfficeLocation string    `json:"office_location,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository persists faculty profiles in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

const facultyCols = `id, account_id, employee_id, COALESCE(department_id, ''), designation,
	specialization, phone, office_location, status, created_at`

func scanFaculty(row interface{ Scan(...any) error }) (*Faculty, error) {
	var f Faculty
	if err := row.Scan(&f.ID, &f.AccountID, &f.EmployeeID, &f.DepartmentID, &f.Designation,
		&f.Specialization, &f.Phone, &f.OfficeLocation, &f.Status, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// GetByEmployeeID looks up a faculty member by the external employee number.
func (r *Repository) GetByEmployeeID(ctx context.Context, employeeID string) (*Faculty, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+facultyCols+` FROM faculty WHERE employee_id = $1`, employeeID)
	return scanFaculty(row)
}

// CreateIfAbsent inserts a profile keyed on (account, employee number),
// leaving an existing row untouched.
func (r *Repository) CreateIfAbsent(ctx context.Context, f Faculty) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = "active"
	}
	var deptID any
	if f.DepartmentID != "" {
		deptID = f.DepartmentID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO faculty (id, account_id, employee_id, department_id, designation, specialization, phone, office_location, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (employee_id) DO NOTHING
	`, f.ID, f.AccountID, f.EmployeeID, deptID, f.Designation, f.Specialization, f.Phone, f.OfficeLocation, f.Status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns all faculty profiles ordered by employee number.
func (r *Repository) List(ctx context.Context) ([]Faculty, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+facultyCols+` FROM faculty ORDER BY employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Faculty
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// CountActive returns the number of active faculty members.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faculty WHERE status = 'active'`).Scan(&n)
	return n, err
}
