package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/apperr"
)

// MemoryRepository is a map-backed Repository for development and tests,
// mirroring the dev backends elsewhere in the system (in-memory queue).
type MemoryRepository struct {
	mu       sync.RWMutex
	records  map[string]Record
	byKey    map[string]string // student|course|date -> record id
	students map[string]float64
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]Record),
		byKey:    make(map[string]string),
		students: make(map[string]float64),
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source, for edit-window tests.
func (m *MemoryRepository) SetClock(now func() time.Time) { m.now = now }

// AddStudent registers a student id so percent updates can land somewhere.
func (m *MemoryRepository) AddStudent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = 0
}

func recordKey(studentID, courseID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", studentID, courseID, date.Format("2006-01-02"))
}

func (m *MemoryRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(rec.StudentID, rec.CourseID, rec.Date)
	if _, exists := m.byKey[key]; exists {
		return Record{}, apperr.NewConflictError(key, "a record for this student, course and date already exists")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := m.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = rec
	m.byKey[key] = rec.ID
	return rec, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryRepository) Update(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	// identity fields stay as stored
	rec.StudentID, rec.CourseID, rec.Date, rec.CreatedAt = old.StudentID, old.CourseID, old.Date, old.CreatedAt
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryRepository) match(rec Record, f Filter) bool {
	if f.StudentID != "" && rec.StudentID != f.StudentID {
		return false
	}
	if f.CourseID != "" && rec.CourseID != f.CourseID {
		return false
	}
	if !f.From.IsZero() && rec.Date.Before(day(f.From)) {
		return false
	}
	if !f.To.IsZero() && rec.Date.After(day(f.To)) {
		return false
	}
	return true
}

func (m *MemoryRepository) List(ctx context.Context, f Filter, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if m.match(rec, f) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return m.List(ctx, Filter{StudentID: studentID}, 1<<30, 0)
}

func (m *MemoryRepository) Totals(ctx context.Context, f Filter) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t Totals
	for _, rec := range m.records {
		if !m.match(rec, f) {
			continue
		}
		t.Total++
		switch rec.Status {
		case StatusPresent, StatusLate:
			t.Attended++
			t.Countable++
		case StatusAbsent:
			t.Countable++
		}
	}
	return t, nil
}

func (m *MemoryRepository) StudentPercent(ctx context.Context, studentID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pct, ok := m.students[studentID]
	if !ok {
		return 0, ErrStudentNotFound
	}
	return pct, nil
}

func (m *MemoryRepository) SetStudentPercent(ctx context.Context, studentID string, pct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return ErrStudentNotFound
	}
	m.students[studentID] = pct
	return nil
}

// InTx snapshots state, runs fn, and restores the snapshot if fn fails.
func (m *MemoryRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	records := make(map[string]Record, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	byKey := make(map[string]string, len(m.byKey))
	for k, v := range m.byKey {
		byKey[k] = v
	}
	students := make(map[string]float64, len(m.students))
	for k, v := range m.students {
		students[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.records, m.byKey, m.students = records, byKey, students
		m.mu.Unlock()
		return err
	}
	return nil
}
