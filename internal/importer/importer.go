package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"

	"campusconnect/internal/account"
	"campusconnect/internal/apperr"
	"campusconnect/internal/auth"
	"campusconnect/internal/department"
	"campusconnect/internal/faculty"
	"campusconnect/internal/metrics"
	"campusconnect/internal/student"
)

// Kind selects the entity a CSV upload describes.
type Kind string

const (
	KindDepartment Kind = "department"
	KindStudent    Kind = "student"
	KindFaculty    Kind = "faculty"
)

// ParseKind maps a request value onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDepartment, KindStudent, KindFaculty:
		return Kind(s), nil
	}
	return "", apperr.NewValidationError(fmt.Sprintf("unknown import kind %q", s))
}

// Result summarizes a committed batch.
type Result struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
}

// run states; a batch is never observable in a partial state.
const (
	statePending    = "PENDING"
	stateValidating = "VALIDATING"
	stateCommitting = "COMMITTING"
	stateCommitted  = "COMMITTED"
	stateAborted    = "ABORTED"
)

// Tx is the transaction-scoped persistence surface a batch writes through.
// Every method call stages writes inside one transaction; nothing is visible
// until the whole batch commits.
type Tx interface {
	DepartmentByName(ctx context.Context, name string) (*department.Department, error)
	CreateDepartmentIfAbsent(ctx context.Context, d department.Department) (bool, error)
	FindOrCreateAccount(ctx context.Context, n account.New) (*account.Account, bool, error)
	CreateStudentIfAbsent(ctx context.Context, s student.Student) (bool, error)
	CreateFacultyIfAbsent(ctx context.Context, f faculty.Faculty) (bool, error)
}

// Store opens the atomic boundary a batch runs in.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Service converts uploaded CSV files into persisted account+profile pairs,
// all-or-nothing per batch.
type Service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// required columns per kind; inner slices are accepted alternates.
var requiredColumns = map[Kind][][]string{
	KindDepartment: {{"code"}, {"name"}},
	KindStudent:    {{"student_id"}, {"first_name"}, {"last_name"}, {"email"}, {"department_name"}, {"year"}, {"semester"}},
	KindFaculty:    {{"employee_id", "faculty_id"}, {"first_name"}, {"last_name"}, {"email"}, {"department_name"}, {"designation"}},
}

// Import processes one uploaded file as a single atomic batch. Rows are
// handled in file order; the first unresolvable reference, missing column,
// or uniqueness violation aborts the whole batch with nothing committed.
// Re-importing the same file is idempotent: existing rows are skipped.
func (s *Service) Import(ctx context.Context, authz auth.Context, kind Kind, src io.Reader) (Result, error) {
	log.Printf("import %s: %s (by %s)", kind, statePending, authz.AccountID)

	log.Printf("import %s: %s", kind, stateValidating)
	header, rows, err := readRows(src)
	if err != nil {
		s.abort(kind, err)
		return Result{}, err
	}
	if err := checkColumns(header, requiredColumns[kind]); err != nil {
		s.abort(kind, err)
		return Result{}, err
	}

	log.Printf("import %s: %s (%d rows)", kind, stateCommitting, len(rows))
	var res Result
	err = s.store.InTx(ctx, func(tx Tx) error {
		res = Result{}
		for _, row := range rows {
			created, err := s.importRow(ctx, tx, kind, row)
			if err != nil {
				return err
			}
			res.Processed++
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		s.abort(kind, err)
		return Result{}, err
	}

	log.Printf("import %s: %s (%d created, %d skipped)", kind, stateCommitted, res.Created, res.Skipped)
	metrics.ImportRuns.WithLabelValues(string(kind), "committed").Inc()
	metrics.ImportRowsCreated.WithLabelValues(string(kind)).Add(float64(res.Created))
	return res, nil
}

func (s *Service) abort(kind Kind, err error) {
	log.Printf("import %s: %s: %v", kind, stateAborted, err)
	metrics.ImportRuns.WithLabelValues(string(kind), "aborted").Inc()
}

func (s *Service) importRow(ctx context.Context, tx Tx, kind Kind, row Row) (bool, error) {
	switch kind {
	case KindDepartment:
		return s.importDepartment(ctx, tx, row)
	case KindStudent:
		return s.importStudent(ctx, tx, row)
	case KindFaculty:
		return s.importFaculty(ctx, tx, row)
	}
	return false, apperr.NewValidationError(fmt.Sprintf("unknown import kind %q", kind))
}

type departmentRow struct {
	Code string `validate:"required"`
	Name string `validate:"required"`
}

func (s *Service) importDepartment(ctx context.Context, tx Tx, row Row) (bool, error) {
	dr := departmentRow{Code: row.Get("code"), Name: row.Get("name")}
	if err := s.checkRow(dr, row.Line); err != nil {
		return false, err
	}
	return tx.CreateDepartmentIfAbsent(ctx, department.Department{
		Code:             dr.Code,
		Name:             dr.Name,
		HeadOfDepartment: row.Get("head_of_department"),
		Description:      row.Get("description"),
	})
}

type studentRow struct {
	StudentID      string `validate:"required"`
	FirstName      string `validate:"required"`
	LastName       string `validate:"required"`
	Email          string `validate:"required,email"`
	DepartmentName string `validate:"required"`
	Year           string `validate:"required"`
	Semester       string `validate:"required"`
}

func (s *Service) importStudent(ctx context.Context, tx Tx, row Row) (bool, error) {
	sr := studentRow{
		StudentID:      row.Get("student_id"),
		FirstName:      row.Get("first_name"),
		LastName:       row.Get("last_name"),
		Email:          row.Get("email"),
		DepartmentName: row.Get("department_name"),
		Year:           row.Get("year"),
		Semester:       row.Get("semester"),
	}
	if err := s.checkRow(sr, row.Line); err != nil {
		return false, err
	}
	year, err := parseIntField(sr.Year, "year", row.Line)
	if err != nil {
		return false, err
	}
	semester, err := parseIntField(sr.Semester, "semester", row.Line)
	if err != nil {
		return false, err
	}

	dept, err := s.resolveDepartment(ctx, tx, sr.DepartmentName, row.Line)
	if err != nil {
		return false, err
	}

	// Bootstrap credential equals the student number. Deliberately weak;
	// imported users must change it on first login.
	acct, _, err := tx.FindOrCreateAccount(ctx, account.New{
		Username:  sr.StudentID,
		Email:     sr.Email,
		FirstName: sr.FirstName,
		LastName:  sr.LastName,
		Role:      auth.RoleStudent,
		Password:  sr.StudentID,
	})
	if err != nil {
		return false, err
	}

	return tx.CreateStudentIfAbsent(ctx, student.Student{
		AccountID:    acct.ID,
		StudentID:    sr.StudentID,
		DepartmentID: dept.ID,
		Year:         year,
		Semester:     semester,
		Phone:        row.Get("phone"),
		Address:      row.Get("address"),
		GuardianName: row.Get("guardian_name"),
	})
}

type facultyRow struct {
	EmployeeID     string `validate:"required"`
	FirstName      string `validate:"required"`
	LastName       string `validate:"required"`
	Email          string `validate:"required,email"`
	DepartmentName string `validate:"required"`
	Designation    string `validate:"required"`
}

func (s *Service) importFaculty(ctx context.Context, tx Tx, row Row) (bool, error) {
	employeeID := row.Get("employee_id")
	if employeeID == "" {
		employeeID = row.Get("faculty_id")
	}
	fr := facultyRow{
		EmployeeID:     employeeID,
		FirstName:      row.Get("first_name"),
		LastName:       row.Get("last_name"),
		Email:          row.Get("email"),
		DepartmentName: row.Get("department_name"),
		Designation:    row.Get("designation"),
	}
	if err := s.checkRow(fr, row.Line); err != nil {
		return false, err
	}

	dept, err := s.resolveDepartment(ctx, tx, fr.DepartmentName, row.Line)
	if err != nil {
		return false, err
	}

	acct, _, err := tx.FindOrCreateAccount(ctx, account.New{
		Username:  fr.EmployeeID,
		Email:     fr.Email,
		FirstName: fr.FirstName,
		LastName:  fr.LastName,
		Role:      auth.RoleFaculty,
		Password:  fr.EmployeeID,
	})
	if err != nil {
		return false, err
	}

	return tx.CreateFacultyIfAbsent(ctx, faculty.Faculty{
		AccountID:      acct.ID,
		EmployeeID:     fr.EmployeeID,
		DepartmentID:   dept.ID,
		Designation:    fr.Designation,
		Specialization: row.Get("specialization"),
		Phone:          row.Get("phone"),
		OfficeLocation: row.Get("office_location"),
	})
}

// resolveDepartment maps a department name onto an existing department,
// case-insensitively. Missing departments abort the batch.
func (s *Service) resolveDepartment(ctx context.Context, tx Tx, name string, line int) (*department.Department, error) {
	dept, err := tx.DepartmentByName(ctx, name)
	if errors.Is(err, department.ErrNotFound) {
		return nil, apperr.NewReferenceError("department", name, line)
	}
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// checkRow runs struct validation and converts failures into a
// field-annotated ValidationError for the offending row.
func (s *Service) checkRow(v any, line int) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	flds := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, apperr.FieldError{Field: fe.Field(), Error: fe.Tag()})
	}
	return apperr.NewValidationError(fmt.Sprintf("row %d: invalid values", line), flds...)
}

func parseIntField(val, field string, line int) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperr.NewValidationError(fmt.Sprintf("row %d: %s must be a number", line, field),
			apperr.FieldError{Field: field, Error: "not a number"})
	}
	return n, nil
}
