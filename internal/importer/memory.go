package importer

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"campusconnect/internal/account"
	"campusconnect/internal/department"
	"campusconnect/internal/faculty"
	"campusconnect/internal/student"
)

// MemoryStore is a map-backed Store for development and tests. Its InTx
// snapshots state up front and restores it when the batch fails, mirroring
// the all-or-nothing behavior of the SQL store.
type MemoryStore struct {
	mu          sync.Mutex
	Departments map[string]department.Department // by code
	Accounts    map[string]account.Account       // by username
	Students    map[string]student.Student       // by student number
	Faculty     map[string]faculty.Faculty       // by employee number
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Departments: make(map[string]department.Department),
		Accounts:    make(map[string]account.Account),
		Students:    make(map[string]student.Student),
		Faculty:     make(map[string]faculty.Faculty),
	}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := NewMemoryStore()
	for k, v := range m.Departments {
		snapshot.Departments[k] = v
	}
	for k, v := range m.Accounts {
		snapshot.Accounts[k] = v
	}
	for k, v := range m.Students {
		snapshot.Students[k] = v
	}
	for k, v := range m.Faculty {
		snapshot.Faculty[k] = v
	}

	if err := fn(&memTx{store: m}); err != nil {
		m.Departments = snapshot.Departments
		m.Accounts = snapshot.Accounts
		m.Students = snapshot.Students
		m.Faculty = snapshot.Faculty
		return err
	}
	return nil
}

type memTx struct {
	store *MemoryStore
}

func (t *memTx) DepartmentByName(ctx context.Context, name string) (*department.Department, error) {
	for _, d := range t.store.Departments {
		if strings.EqualFold(d.Name, name) {
			out := d
			return &out, nil
		}
	}
	return nil, department.ErrNotFound
}

func (t *memTx) CreateDepartmentIfAbsent(ctx context.Context, d department.Department) (bool, error) {
	if _, exists := t.store.Departments[d.Code]; exists {
		return false, nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	t.store.Departments[d.Code] = d
	return true, nil
}

func (t *memTx) FindOrCreateAccount(ctx context.Context, n account.New) (*account.Account, bool, error) {
	if a, exists := t.store.Accounts[n.Username]; exists {
		out := a
		return &out, false, nil
	}
	a := account.Account{
		ID:        uuid.NewString(),
		Username:  n.Username,
		Email:     n.Email,
		FirstName: n.FirstName,
		LastName:  n.LastName,
		Role:      n.Role,
		IsActive:  true,
	}
	t.store.Accounts[n.Username] = a
	return &a, true, nil
}

func (t *memTx) CreateStudentIfAbsent(ctx context.Context, s student.Student) (bool, error) {
	if _, exists := t.store.Students[s.StudentID]; exists {
		return false, nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = student.StatusActive
	}
	t.store.Students[s.StudentID] = s
	return true, nil
}

func (t *memTx) CreateFacultyIfAbsent(ctx context.Context, f faculty.Faculty) (bool, error) {
	if _, exists := t.store.Faculty[f.EmployeeID]; exists {
		return false, nil
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = "active"
	}
	t.store.Faculty[f.EmployeeID] = f
	return true, nil
}
