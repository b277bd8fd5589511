package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"campusconnect/internal/apperr"
	"campusconnect/internal/store"
)

var (
	ErrNotFound        = errors.New("attendance record not found")
	ErrStudentNotFound = errors.New("student not found")
)

// sqlRepository persists attendance data in Postgres.
type sqlRepository struct {
	db *store.DB
	q  store.DBTX
}

// NewSQLRepository creates a repository over the shared Postgres handle.
func NewSQLRepository(db *store.DB) Repository {
	return &sqlRepository{db: db, q: db.Client}
}

// InTx runs fn against a transaction-bound copy of the repository.
func (r *sqlRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlRepository{db: r.db, q: tx})
	})
}

const recordCols = `id, student_id, course_id, date, status, time_in, time_out,
	marked_by, remarks, reason, approved_by, evidence_url, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.CourseID, &rec.Date, &rec.Status, &rec.TimeIn, &rec.TimeOut,
		&rec.MarkedBy, &rec.Remarks, &rec.Reason, &rec.ApprovedBy, &rec.EvidenceURL, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// Insert writes a new record. A duplicate (student, course, date) surfaces
// as a ConflictError.
func (r *sqlRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, course_id, date, status, time_in, time_out, marked_by, remarks, reason, evidence_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at
	`, rec.ID, rec.StudentID, rec.CourseID, rec.Date, rec.Status, rec.TimeIn, rec.TimeOut, rec.MarkedBy, rec.Remarks, rec.Reason, rec.EvidenceURL)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			key := fmt.Sprintf("%s/%s/%s", rec.StudentID, rec.CourseID, rec.Date.Format("2006-01-02"))
			return Record{}, apperr.NewConflictError(key, "a record for this student, course and date already exists")
		}
		if isForeignKeyViolation(err) {
			return Record{}, apperr.NewReferenceError("student or course", rec.StudentID+"/"+rec.CourseID, 0)
		}
		return Record{}, err
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *sqlRepository) Get(ctx context.Context, id string) (Record, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+recordCols+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Update persists the mutable fields of a record. Identity fields are never
// touched.
func (r *sqlRepository) Update(ctx context.Context, rec Record) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $2, remarks = $3, reason = $4, approved_by = $5, updated_at = $6
		WHERE id = $1
	`, rec.ID, rec.Status, rec.Remarks, rec.Reason, rec.ApprovedBy, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStudent returns every record of one student, for recompute scans.
func (r *sqlRepository) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+recordCols+` FROM attendance_records WHERE student_id = $1 ORDER BY date`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// List returns records matching the filter, newest first.
func (r *sqlRepository) List(ctx context.Context, f Filter, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + prefixCols("a.") + ` FROM attendance_records a`
	clauses, args, joins := filterClauses(f)
	query += joins
	if len(clauses) > 0 {
		query += " WHERE " + join(clauses, " AND ")
	}
	query += " ORDER BY a.date DESC, a.course_id, a.student_id LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Totals aggregates record counts for the filter in one query.
func (r *sqlRepository) Totals(ctx context.Context, f Filter) (Totals, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE a.status IN ('present','late')),
		       COUNT(*) FILTER (WHERE a.status IN ('present','late','absent'))
		FROM attendance_records a`
	clauses, args, joins := filterClauses(f)
	query += joins
	if len(clauses) > 0 {
		query += " WHERE " + join(clauses, " AND ")
	}
	var t Totals
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&t.Total, &t.Attended, &t.Countable)
	return t, err
}

// StudentPercent reads the cached percentage, verifying the student exists.
func (r *sqlRepository) StudentPercent(ctx context.Context, studentID string) (float64, error) {
	var pct float64
	err := r.q.QueryRowContext(ctx, `SELECT attendance_percent FROM students WHERE id = $1`, studentID).Scan(&pct)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrStudentNotFound
	}
	return pct, err
}

// SetStudentPercent persists the cached percentage on the student row.
func (r *sqlRepository) SetStudentPercent(ctx context.Context, studentID string, pct float64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE students SET attendance_percent = $2 WHERE id = $1`, studentID, pct)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// filterClauses builds WHERE clauses and positional args for a Filter.
// A department filter needs the students join.
func filterClauses(f Filter) (clauses []string, args []any, joins string) {
	if f.DepartmentID != "" {
		joins = " JOIN students s ON s.id = a.student_id"
		args = append(args, f.DepartmentID)
		clauses = append(clauses, "s.department_id = $"+itoa(len(args)))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "a.student_id = $"+itoa(len(args)))
	}
	if f.CourseID != "" {
		args = append(args, f.CourseID)
		clauses = append(clauses, "a.course_id = $"+itoa(len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, day(f.From))
		clauses = append(clauses, "a.date >= $"+itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, day(f.To))
		clauses = append(clauses, "a.date <= $"+itoa(len(args)))
	}
	return clauses, args, joins
}

func prefixCols(prefix string) string {
	return prefix + `id, ` + prefix + `student_id, ` + prefix + `course_id, ` + prefix + `date, ` + prefix + `status, ` +
		prefix + `time_in, ` + prefix + `time_out, ` + prefix + `marked_by, ` + prefix + `remarks, ` + prefix + `reason, ` +
		prefix + `approved_by, ` + prefix + `evidence_url, ` + prefix + `created_at, ` + prefix + `updated_at`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func join(parts []string, sep string) string {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
