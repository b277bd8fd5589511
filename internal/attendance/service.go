package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"campusconnect/internal/apperr"
	"campusconnect/internal/auth"
	"campusconnect/internal/metrics"
	"campusconnect/internal/queue"
	"campusconnect/internal/store"
)

// Totals is an aggregate over a set of records. Countable excludes the
// excused and on_duty statuses, which contribute to neither side of the
// percentage.
type Totals struct {
	Total     int
	Attended  int
	Countable int
}

// Repository is the persistence surface the service needs. The SQL
// implementation lives in this package; an in-memory one backs tests.
type Repository interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, rec Record) error
	List(ctx context.Context, f Filter, limit, offset int) ([]Record, error)
	ListByStudent(ctx context.Context, studentID string) ([]Record, error)
	Totals(ctx context.Context, f Filter) (Totals, error)
	StudentPercent(ctx context.Context, studentID string) (float64, error)
	SetStudentPercent(ctx context.Context, studentID string, pct float64) error
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Config tunes the aggregation service. Zero values fall back to the
// defaults the rest of the system assumes.
type Config struct {
	Threshold  float64       // defaulter threshold, percent
	EditWindow time.Duration // how long a record stays mutable
	TrendDays  int           // dashboard trend length
	Cache      *store.Redis  // optional dashboard cache
	CacheTTL   time.Duration
	Alerts     queue.Queue // optional defaulter alert queue
	Now        func() time.Time
}

// Service keeps each student's cached attendance percentage consistent with
// the underlying records and classifies defaulters.
type Service struct {
	repo Repository
	cfg  Config
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 75.0
	}
	if cfg.EditWindow <= 0 {
		cfg.EditWindow = 48 * time.Hour
	}
	if cfg.TrendDays <= 0 {
		cfg.TrendDays = 7
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{repo: repo, cfg: cfg}
}

// BulkEntry is one student's status in a mass-entry submission.
type BulkEntry struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
	Remarks   string `json:"remarks"`
}

// Mark records a single attendance entry. The caller is expected to invoke
// Recompute for the student afterwards; marking has no hidden side effects.
func (s *Service) Mark(ctx context.Context, authz auth.Context, n NewRecord) (Record, error) {
	if n.StudentID == "" || n.CourseID == "" {
		return Record{}, apperr.NewValidationError("student and course are required")
	}
	if n.Date.IsZero() {
		return Record{}, apperr.NewValidationError("date is required", apperr.FieldError{Field: "date", Error: "required"})
	}
	if !ValidStatus(n.Status) {
		return Record{}, apperr.NewValidationError(fmt.Sprintf("unknown status %q", n.Status), apperr.FieldError{Field: "status", Error: "unknown status"})
	}
	rec := Record{
		StudentID:   n.StudentID,
		CourseID:    n.CourseID,
		Date:        day(n.Date),
		Status:      n.Status,
		TimeIn:      n.TimeIn,
		TimeOut:     n.TimeOut,
		MarkedBy:    authz.AccountID,
		Remarks:     n.Remarks,
		Reason:      n.Reason,
		EvidenceURL: n.EvidenceURL,
	}
	out, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	metrics.RecordsMarked.WithLabelValues(out.Status).Inc()
	return out, nil
}

// MarkBulk records a whole class sheet in one transaction and recomputes the
// cached percentage of every affected student inside the same transaction.
// Any duplicate (student, course, date) aborts the entire entry.
func (s *Service) MarkBulk(ctx context.Context, authz auth.Context, courseID string, date time.Time, entries []BulkEntry) ([]Record, error) {
	if courseID == "" {
		return nil, apperr.NewValidationError("course is required")
	}
	if len(entries) == 0 {
		return nil, apperr.NewValidationError("no entries submitted")
	}
	for _, e := range entries {
		if !ValidStatus(e.Status) {
			return nil, apperr.NewValidationError(fmt.Sprintf("unknown status %q for student %s", e.Status, e.StudentID),
				apperr.FieldError{Field: "status", Error: "unknown status"})
		}
	}

	var out []Record
	var alerts []Summary
	err := s.repo.InTx(ctx, func(txRepo Repository) error {
		out = out[:0]
		alerts = alerts[:0]
		seen := map[string]bool{}
		for _, e := range entries {
			rec, err := txRepo.Insert(ctx, Record{
				StudentID: e.StudentID,
				CourseID:  courseID,
				Date:      day(date),
				Status:    e.Status,
				MarkedBy:  authz.AccountID,
				Remarks:   e.Remarks,
			})
			if err != nil {
				return err
			}
			out = append(out, rec)
			seen[e.StudentID] = true
		}
		for studentID := range seen {
			sum, newlyBelow, err := s.recomputeIn(ctx, txRepo, studentID)
			if err != nil {
				return err
			}
			if newlyBelow {
				alerts = append(alerts, sum)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, rec := range out {
		metrics.RecordsMarked.WithLabelValues(rec.Status).Inc()
	}
	for _, sum := range alerts {
		s.publishAlert(ctx, sum)
	}
	return out, nil
}

// Update mutates status/remarks of a record. Records older than the edit
// window are locked; only the original marker or an approver may edit.
func (s *Service) Update(ctx context.Context, authz auth.Context, id string, patch Patch) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if s.cfg.Now().Sub(rec.CreatedAt) > s.cfg.EditWindow {
		return Record{}, apperr.NewLockedRecordError(id)
	}
	if authz.AccountID != rec.MarkedBy && !authz.CanApprove() {
		return Record{}, errors.New("only the original marker or an approver may edit this record")
	}
	if patch.Status != nil {
		if !ValidStatus(*patch.Status) {
			return Record{}, apperr.NewValidationError(fmt.Sprintf("unknown status %q", *patch.Status),
				apperr.FieldError{Field: "status", Error: "unknown status"})
		}
		rec.Status = *patch.Status
	}
	if patch.Remarks != nil {
		rec.Remarks = *patch.Remarks
	}
	if patch.Reason != nil {
		rec.Reason = *patch.Reason
	}
	if authz.AccountID != rec.MarkedBy {
		rec.ApprovedBy = authz.AccountID
	}
	rec.UpdatedAt = s.cfg.Now().UTC()
	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Recompute rescans every record of the student and persists the cached
// percentage. It is idempotent and safe to run regardless of lock state.
func (s *Service) Recompute(ctx context.Context, studentID string) (Summary, error) {
	sum, newlyBelow, err := s.recomputeIn(ctx, s.repo, studentID)
	if err != nil {
		return Summary{}, err
	}
	if newlyBelow {
		s.publishAlert(ctx, sum)
	}
	return sum, nil
}

func (s *Service) recomputeIn(ctx context.Context, repo Repository, studentID string) (Summary, bool, error) {
	prev, err := repo.StudentPercent(ctx, studentID)
	if err != nil {
		return Summary{}, false, err
	}
	records, err := repo.ListByStudent(ctx, studentID)
	if err != nil {
		return Summary{}, false, err
	}
	sum := summarize(studentID, records, s.cfg.Threshold)
	if err := repo.SetStudentPercent(ctx, studentID, sum.Percentage); err != nil {
		return Summary{}, false, err
	}
	metrics.Recomputes.Inc()
	newlyBelow := prev >= s.cfg.Threshold && sum.Percentage < s.cfg.Threshold
	return sum, newlyBelow, nil
}

// summarize aggregates records into a Summary. Excused and on_duty records
// count toward neither the numerator nor the denominator.
func summarize(studentID string, records []Record, threshold float64) Summary {
	sum := Summary{StudentID: studentID, Total: len(records)}
	countable := 0
	for _, rec := range records {
		switch rec.Status {
		case StatusPresent:
			sum.Attended++
			countable++
		case StatusLate:
			sum.Attended++
			sum.Late++
			countable++
		case StatusAbsent:
			sum.Absent++
			countable++
		case StatusExcused, StatusOnDuty:
			sum.Excused++
		}
	}
	if countable > 0 {
		sum.Percentage = round1(float64(sum.Attended) / float64(countable) * 100)
	}
	sum.IsDefaulter = sum.Percentage < threshold
	return sum
}

// IsDefaulter reports whether a percentage falls below the threshold.
func (s *Service) IsDefaulter(pct float64) bool {
	return pct < s.cfg.Threshold
}

// Threshold returns the configured defaulter threshold.
func (s *Service) Threshold() float64 { return s.cfg.Threshold }

// ListRecords returns records matching the filter, newest first.
func (s *Service) ListRecords(ctx context.Context, f Filter, limit, offset int) ([]Record, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// GetRecord returns a single record by id.
func (s *Service) GetRecord(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// DashboardSummary aggregates attendance over the filter window and builds a
// fixed-length per-day trend ending on the window's last day. Days without
// records report 0.0 so the series always has TrendDays entries.
func (s *Service) DashboardSummary(ctx context.Context, f Filter) (Dashboard, error) {
	end := f.To
	if end.IsZero() {
		end = s.cfg.Now().UTC()
	}
	end = day(end)

	cacheKey := fmt.Sprintf("dashboard:%s:%s:%s:%s", f.CourseID, f.DepartmentID, f.StudentID, end.Format("2006-01-02"))
	var cached Dashboard
	if s.cfg.Cache.GetJSON(ctx, cacheKey, &cached) {
		return cached, nil
	}

	totals, err := s.repo.Totals(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	dash := Dashboard{
		TotalRecords: totals.Total,
		Attended:     totals.Attended,
		Trend:        make([]TrendPoint, 0, s.cfg.TrendDays),
	}
	if totals.Countable > 0 {
		dash.Rate = round1(float64(totals.Attended) / float64(totals.Countable) * 100)
	}

	for i := s.cfg.TrendDays - 1; i >= 0; i-- {
		d := end.AddDate(0, 0, -i)
		dayFilter := f
		dayFilter.From, dayFilter.To = d, d
		dayTotals, err := s.repo.Totals(ctx, dayFilter)
		if err != nil {
			return Dashboard{}, err
		}
		rate := 0.0
		if dayTotals.Countable > 0 {
			rate = round1(float64(dayTotals.Attended) / float64(dayTotals.Countable) * 100)
		}
		dash.Trend = append(dash.Trend, TrendPoint{Day: d.Format("2006-01-02"), Rate: rate})
	}

	s.cfg.Cache.SetJSON(ctx, cacheKey, dash, s.cfg.CacheTTL)
	return dash, nil
}

func (s *Service) publishAlert(ctx context.Context, sum Summary) {
	metrics.DefaulterAlerts.Inc()
	if s.cfg.Alerts == nil {
		return
	}
	body := fmt.Sprintf("%s|%.1f", sum.StudentID, sum.Percentage)
	_ = s.cfg.Alerts.Publish(ctx, queue.Message{Type: queue.TypeDefaulterAlert, Body: []byte(body)})
}

// day truncates a timestamp to its UTC calendar date.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
