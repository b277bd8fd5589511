package course

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/apperr"
	"campusconnect/internal/store"
)

var ErrNotFound = errors.New("course not found")

// Course is a taught unit within a department.
type Course struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	DepartmentID string    `json:"department_id,omitempty"`
	Year         int       `json:"year"`
	Semester     int       `json:"semester"`
	Credits      int       `json:"credits"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists courses and their prerequisite edges in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

const courseCols = `id, code, name, COALESCE(department_id, ''), year, semester, credits, is_active, created_at`

func scanCourse(row interface{ Scan(...any) error }) (*Course, error) {
	var c Course
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.DepartmentID, &c.Year, &c.Semester, &c.Credits, &c.IsActive, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get looks up a course by primary key.
func (r *Repository) Get(ctx context.Context, id string) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE id = $1`, id)
	return scanCourse(row)
}

// GetByCode looks up a course by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE code = $1`, code)
	return scanCourse(row)
}

// CreateIfAbsent inserts a course keyed on code.
func (r *Repository) CreateIfAbsent(ctx context.Context, c Course) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Credits == 0 {
		c.Credits = 3
	}
	var deptID any
	if c.DepartmentID != "" {
		deptID = c.DepartmentID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, code, name, department_id, year, semester, credits, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE)
		ON CONFLICT (code) DO NOTHING
	`, c.ID, c.Code, c.Name, deptID, c.Year, c.Semester, c.Credits)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListActive returns active courses ordered by code.
func (r *Repository) ListActive(ctx context.Context) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseCols+` FROM courses WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountActive returns the number of active courses.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE is_active`).Scan(&n)
	return n, err
}

// prerequisiteEdges loads the full prerequisite adjacency set.
func (r *Repository) prerequisiteEdges(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT course_id, prerequisite_id FROM course_prerequisites`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	adj := make(map[string][]string)
	for rows.Next() {
		var course, prereq string
		if err := rows.Scan(&course, &prereq); err != nil {
			return nil, err
		}
		adj[course] = append(adj[course], prereq)
	}
	return adj, rows.Err()
}

// Prerequisites returns the direct prerequisite ids of a course.
func (r *Repository) Prerequisites(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT prerequisite_id FROM course_prerequisites WHERE course_id = $1 ORDER BY prerequisite_id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddPrerequisite records that courseID requires prereqID, rejecting unknown
// courses and edges that would close a cycle.
func (r *Repository) AddPrerequisite(ctx context.Context, courseID, prereqID string) error {
	if courseID == prereqID {
		return apperr.NewConflictError(courseID, "a course cannot be its own prerequisite")
	}
	if _, err := r.Get(ctx, courseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NewReferenceError("course", courseID, 0)
		}
		return err
	}
	if _, err := r.Get(ctx, prereqID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NewReferenceError("course", prereqID, 0)
		}
		return err
	}
	adj, err := r.prerequisiteEdges(ctx)
	if err != nil {
		return err
	}
	if wouldCycle(adj, courseID, prereqID) {
		return apperr.NewConflictError(prereqID, "prerequisite would create a cycle")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO course_prerequisites (course_id, prerequisite_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, courseID, prereqID)
	return err
}

// wouldCycle reports whether adding course -> prereq creates a cycle, i.e.
// whether course is already reachable from prereq through existing edges.
func wouldCycle(adj map[string][]string, courseID, prereqID string) bool {
	seen := map[string]bool{}
	stack := []string{prereqID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == courseID {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, adj[cur]...)
	}
	return false
}
