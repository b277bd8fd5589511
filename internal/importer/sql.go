package importer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"campusconnect/internal/account"
	"campusconnect/internal/apperr"
	"campusconnect/internal/department"
	"campusconnect/internal/faculty"
	"campusconnect/internal/store"
	"campusconnect/internal/student"
)

// sqlStore runs batches inside a single Postgres transaction.
type sqlStore struct {
	db *store.DB
}

func NewSQLStore(db *store.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlTx{tx: tx})
	})
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) DepartmentByName(ctx context.Context, name string) (*department.Department, error) {
	return department.NewRepository(t.tx).GetByName(ctx, name)
}

func (t *sqlTx) CreateDepartmentIfAbsent(ctx context.Context, d department.Department) (bool, error) {
	created, err := department.NewRepository(t.tx).CreateIfAbsent(ctx, d)
	return created, conflict(err, d.Code)
}

func (t *sqlTx) FindOrCreateAccount(ctx context.Context, n account.New) (*account.Account, bool, error) {
	acct, created, err := account.NewRepository(t.tx).FindOrCreate(ctx, n)
	return acct, created, conflict(err, n.Username)
}

func (t *sqlTx) CreateStudentIfAbsent(ctx context.Context, s student.Student) (bool, error) {
	created, err := student.NewRepository(t.tx).CreateIfAbsent(ctx, s)
	return created, conflict(err, s.StudentID)
}

func (t *sqlTx) CreateFacultyIfAbsent(ctx context.Context, f faculty.Faculty) (bool, error) {
	created, err := faculty.NewRepository(t.tx).CreateIfAbsent(ctx, f)
	return created, conflict(err, f.EmployeeID)
}

// conflict maps Postgres uniqueness violations onto the ConflictError the
// batch surfaces; other errors pass through untouched.
func conflict(err error, key string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.NewConflictError(key, "a conflicting row already exists")
	}
	return err
}
