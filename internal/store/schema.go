package store

import (
	"context"
	"log"
)

// schema is applied at startup; every statement is idempotent so restarting
// against an existing database is safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		head_of_department TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id),
		student_id TEXT NOT NULL UNIQUE,
		department_id TEXT REFERENCES departments(id),
		year INT NOT NULL,
		semester INT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		guardian_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		attendance_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS faculty (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id),
		employee_id TEXT NOT NULL UNIQUE,
		department_id TEXT REFERENCES departments(id),
		designation TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		office_location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		department_id TEXT REFERENCES departments(id),
		year INT NOT NULL DEFAULT 1,
		semester INT NOT NULL DEFAULT 1,
		credits INT NOT NULL DEFAULT 3,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS course_prerequisites (
		course_id TEXT NOT NULL REFERENCES courses(id),
		prerequisite_id TEXT NOT NULL REFERENCES courses(id),
		PRIMARY KEY (course_id, prerequisite_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		course_id TEXT NOT NULL REFERENCES courses(id),
		date DATE NOT NULL,
		status TEXT NOT NULL,
		time_in TEXT NOT NULL DEFAULT '',
		time_out TEXT NOT NULL DEFAULT '',
		marked_by TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		approved_by TEXT NOT NULL DEFAULT '',
		evidence_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, course_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records (date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student_course ON attendance_records (student_id, course_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_status ON attendance_records (status)`,
	`CREATE TABLE IF NOT EXISTS defaulter_alerts (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		attendance_percent DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema applies the schema statements in order.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			log.Printf("schema statement failed: %v", err)
			return err
		}
	}
	return nil
}
