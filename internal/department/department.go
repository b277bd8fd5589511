package department

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/apperr"
	"campusconnect/internal/store"
)

var ErrNotFound = errors.New("department not found")

// Department groups students, faculty and courses under a unique code.
type Department struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	HeadOfDepartment string    `json:"head_of_department,omitempty"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Repository persists departments in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

const departmentCols = `id, code, name, head_of_department, description, created_at`

func scanDepartment(row interface{ Scan(...any) error }) (*Department, error) {
	var d Department
	if err := row.Scan(&d.ID, &d.Code, &d.Name, &d.HeadOfDepartment, &d.Description, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetByCode returns the department with the given unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Department, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+departmentCols+` FROM departments WHERE code = $1`, code)
	return scanDepartment(row)
}

// GetByName resolves a department by exact name, case-insensitively.
// Import rows reference departments this way.
func (r *Repository) GetByName(ctx context.Context, name string) (*Department, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+departmentCols+` FROM departments WHERE LOWER(name) = LOWER($1)`, name)
	return scanDepartment(row)
}

// CreateIfAbsent inserts a department keyed on code, leaving an existing row
// untouched. Reports whether a new row was created.
func (r *Repository) CreateIfAbsent(ctx context.Context, d Department) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO departments (id, code, name, head_of_department, description)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (code) DO NOTHING
	`, d.ID, d.Code, d.Name, d.HeadOfDepartment, d.Description)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns all departments ordered by name.
func (r *Repository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+departmentCols+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Delete removes a department unless students, faculty or courses still
// reference it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	var linked int
	row := r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM students WHERE department_id = $1)
		     + (SELECT COUNT(*) FROM faculty WHERE department_id = $1)
		     + (SELECT COUNT(*) FROM courses WHERE department_id = $1)
	`, id)
	if err := row.Scan(&linked); err != nil {
		return err
	}
	if linked > 0 {
		return apperr.NewConflictError(id, "department is still linked to students, faculty, or courses")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of departments.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n)
	return n, err
}
