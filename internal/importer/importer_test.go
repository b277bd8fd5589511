package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/apperr"
	"campusconnect/internal/auth"
	"campusconnect/internal/department"
)

var adminCtx = auth.Context{AccountID: "admin-1", Role: auth.RoleAdmin}

func newTestImporter(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store), store
}

func seedDepartment(t *testing.T, store *MemoryStore, code, name string) {
	t.Helper()
	err := store.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.CreateDepartmentIfAbsent(context.Background(), department.Department{Code: code, Name: name})
		return err
	})
	require.NoError(t, err)
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"department", "student", "faculty"} {
		kind, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), kind)
	}
	_, err := ParseKind("course")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestImportDepartments(t *testing.T) {
	svc, store := newTestImporter(t)

	csv := "code,name,head_of_department\n" +
		"CSE,Computer Science,Dr. Rao\n" +
		"ECE,Electronics,Dr. Iyer\n"
	res, err := svc.Import(context.Background(), adminCtx, KindDepartment, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 2, Created: 2, Skipped: 0}, res)
	assert.Equal(t, "Computer Science", store.Departments["CSE"].Name)
	assert.Equal(t, "Dr. Rao", store.Departments["CSE"].HeadOfDepartment)
}

func TestImportStudentsCreatesAccountAndProfile(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,asha@example.edu,Computer Science,2,4\n"
	res, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Created: 1, Skipped: 0}, res)

	acct, ok := store.Accounts["S2026001"]
	require.True(t, ok)
	assert.Equal(t, auth.RoleStudent, acct.Role)

	stu, ok := store.Students["S2026001"]
	require.True(t, ok)
	assert.Equal(t, acct.ID, stu.AccountID)
	assert.Equal(t, store.Departments["CSE"].ID, stu.DepartmentID)
	assert.Equal(t, 2, stu.Year)
	assert.Equal(t, 4, stu.Semester)
}

func TestImportStudentsIdempotent(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,asha@example.edu,Computer Science,2,4\n" +
		"S2026002,Ravi,Kumar,ravi@example.edu,Computer Science,2,4\n"
	first, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 2, Created: 0, Skipped: 2}, second)
	assert.Len(t, store.Students, 2)
	assert.Len(t, store.Accounts, 2)
}

func TestImportAbortsOnUnknownDepartment(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	// row 3 references a department that does not exist
	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,asha@example.edu,Computer Science,2,4\n" +
		"S2026002,Ravi,Kumar,ravi@example.edu,Computer Science,2,4\n" +
		"S2026003,Lena,Das,lena@example.edu,Astrology,2,4\n"
	_, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	var rerr *apperr.ReferenceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 3, rerr.Row)
	assert.Contains(t, err.Error(), "Astrology")

	// rows 1 and 2 must not have leaked out of the aborted batch
	assert.Empty(t, store.Students)
	assert.Empty(t, store.Accounts)
}

func TestImportDepartmentNameMatchIsCaseInsensitive(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,asha@example.edu,COMPUTER SCIENCE,2,4\n"
	res, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, store.Departments["CSE"].ID, store.Students["S2026001"].DepartmentID)
}

func TestImportMissingColumn(t *testing.T) {
	svc, _ := newTestImporter(t)

	csv := "student_id,first_name,last_name,department_name,year,semester\n" +
		"S2026001,Asha,Menon,Computer Science,2,4\n"
	_, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "missing required column: email")
}

func TestImportFacultyAcceptsFacultyIDHeader(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "ECE", "Electronics")

	csv := "faculty_id,first_name,last_name,email,department_name,designation\n" +
		"F101,Vikram,Shah,vikram@example.edu,Electronics,Professor\n"
	res, err := svc.Import(context.Background(), adminCtx, KindFaculty, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	fac, ok := store.Faculty["F101"]
	require.True(t, ok)
	assert.Equal(t, "Professor", fac.Designation)
	assert.Equal(t, auth.RoleFaculty, store.Accounts["F101"].Role)
}

func TestImportRejectsBadEmail(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,not-an-email,Computer Science,2,4\n"
	_, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, store.Students)
}

func TestImportRejectsNonNumericYear(t *testing.T) {
	svc, store := newTestImporter(t)
	seedDepartment(t, store, "CSE", "Computer Science")

	csv := "student_id,first_name,last_name,email,department_name,year,semester\n" +
		"S2026001,Asha,Menon,asha@example.edu,Computer Science,two,4\n"
	_, err := svc.Import(context.Background(), adminCtx, KindStudent, strings.NewReader(csv))
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "row 1")
	assert.Empty(t, store.Students)
}

func TestImportEmptyFile(t *testing.T) {
	svc, _ := newTestImporter(t)
	_, err := svc.Import(context.Background(), adminCtx, KindDepartment, strings.NewReader(""))
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestImportHeaderNormalization(t *testing.T) {
	svc, store := newTestImporter(t)

	csv := " Code , NAME \nME,Mechanical\n"
	res, err := svc.Import(context.Background(), adminCtx, KindDepartment, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "Mechanical", store.Departments["ME"].Name)
}
