package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/store"
)

var ErrNotFound = errors.New("student not found")

// Status values a student moves through.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusGraduated = "graduated"
	StatusDropped   = "dropped"
)

// Student is the domain profile attached one-to-one to an account.
// AttendancePercent is a cache maintained by the attendance recompute path.
type Student struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	StudentID         string    `json:"student_id"`
	DepartmentID      string    `json:"department_id,omitempty"`
	Year              int       `json:"year"`
	Semester          int       `json:"semester"`
	Phone             string    `json:"phone,omitempty"`
	Address           string    `json:"address,omitempty"`
	GuardianName      string    `json:"guardian_name,omitempty"`
	Status            string    `json:"status"`
	AttendancePercent float64   `json:"attendance_percent"`
	CreatedAt         time.Time `json:"created_at"`
}

// Repository persists students in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

const studentCols = `id, account_id, student_id, COALESCE(department_id, ''), year, semester,
	phone, address, guardian_name, status, attendance_percent, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	var s Student
	if err := row.Scan(&s.ID, &s.AccountID, &s.StudentID, &s.DepartmentID, &s.Year, &s.Semester,
		&s.Phone, &s.Address, &s.GuardianName, &s.Status, &s.AttendancePercent, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByStudentID looks up a student by the external student number.
func (r *Repository) GetByStudentID(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentCols+` FROM students WHERE student_id = $1`, studentID)
	return scanStudent(row)
}

// Get looks up a student by primary key.
func (r *Repository) Get(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentCols+` FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

// CreateIfAbsent inserts a profile keyed on (account, student number). An
// existing row is left untouched so re-imports stay idempotent.
func (r *Repository) CreateIfAbsent(ctx context.Context, s Student) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	var deptID any
	if s.DepartmentID != "" {
		deptID = s.DepartmentID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, account_id, student_id, department_id, year, semester, phone, address, guardian_name, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (student_id) DO NOTHING
	`, s.ID, s.AccountID, s.StudentID, deptID, s.Year, s.Semester, s.Phone, s.Address, s.GuardianName, s.Status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdatePercent persists the cached attendance percentage.
func (r *Repository) UpdatePercent(ctx context.Context, id string, pct float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET attendance_percent = $2 WHERE id = $1`, id, pct)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns students filtered by department and status when provided.
func (r *Repository) List(ctx context.Context, departmentID, status string, limit, offset int) ([]Student, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + studentCols + ` FROM students`
	args := []any{}
	clauses := []string{}
	if departmentID != "" {
		args = append(args, departmentID)
		clauses = append(clauses, "department_id = $"+itoa(len(args)))
	}
	if status != "" {
		args = append(args, status)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + join(clauses, " AND ")
	}
	query += " ORDER BY student_id LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountActive returns the number of active students.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE status = 'active'`).Scan(&n)
	return n, err
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func join(parts []string, sep string) string {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
