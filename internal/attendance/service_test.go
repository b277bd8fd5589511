package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/apperr"
	"campusconnect/internal/auth"
	"campusconnect/internal/queue"
)

var facultyCtx = auth.Context{AccountID: "fac-1", Role: auth.RoleFaculty}

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, Config{})
	return svc, repo
}

func mustMark(t *testing.T, svc *Service, studentID, courseID string, date time.Time, status string) Record {
	t.Helper()
	rec, err := svc.Mark(context.Background(), facultyCtx, NewRecord{
		StudentID: studentID,
		CourseID:  courseID,
		Date:      date,
		Status:    status,
	})
	require.NoError(t, err)
	return rec
}

func TestRecomputePercentage(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	statuses := make([]string, 0, 30)
	for i := 0; i < 23; i++ {
		statuses = append(statuses, StatusPresent)
	}
	for i := 0; i < 7; i++ {
		statuses = append(statuses, StatusAbsent)
	}
	for i, status := range statuses {
		mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, i), status)
	}

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 30, sum.Total)
	assert.Equal(t, 23, sum.Attended)
	assert.InDelta(t, 76.7, sum.Percentage, 0.001)
	assert.False(t, sum.IsDefaulter)

	pct, err := repo.StudentPercent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 76.7, pct, 0.001)
}

func TestRecomputeMixedStatuses(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, i), StatusPresent)
	}
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 8), StatusLate)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 9), StatusAbsent)

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 9, sum.Attended)
	assert.InDelta(t, 90.0, sum.Percentage, 0.001)
	assert.False(t, sum.IsDefaulter)
}

func TestRecomputeAllAbsent(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, i), StatusAbsent)
	}

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sum.Percentage, 0.001)
	assert.True(t, sum.IsDefaulter)
}

func TestRecomputeLateCountsAsAttended(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mustMark(t, svc, "stu-1", "cs101", base, StatusPresent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 1), StatusLate)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 2), StatusAbsent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 3), StatusAbsent)

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Attended)
	assert.Equal(t, 1, sum.Late)
	assert.InDelta(t, 50.0, sum.Percentage, 0.001)
	assert.True(t, sum.IsDefaulter)
}

func TestRecomputeExcludesExcusedFromBothSides(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, i), StatusPresent)
	}
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 8), StatusAbsent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 9), StatusAbsent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 10), StatusExcused)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 11), StatusOnDuty)

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 12, sum.Total)
	assert.Equal(t, 2, sum.Excused)
	// 8 attended out of 10 countable; excused and on_duty drop out entirely
	assert.InDelta(t, 80.0, sum.Percentage, 0.001)
	assert.False(t, sum.IsDefaulter)
}

func TestRecomputeNoRecords(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.InDelta(t, 0.0, sum.Percentage, 0.001)
	assert.True(t, sum.IsDefaulter)
}

func TestRecomputeIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mustMark(t, svc, "stu-1", "cs101", base, StatusPresent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 1), StatusAbsent)

	first, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkRejectsUnknownStatus(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	_, err := svc.Mark(context.Background(), facultyCtx, NewRecord{
		StudentID: "stu-1",
		CourseID:  "cs101",
		Date:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Status:    "presnt",
	})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestMarkDuplicateDateConflicts(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")

	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mustMark(t, svc, "stu-1", "cs101", date, StatusPresent)

	_, err := svc.Mark(context.Background(), facultyCtx, NewRecord{
		StudentID: "stu-1",
		CourseID:  "cs101",
		Date:      date,
		Status:    StatusAbsent,
	})
	var cerr *apperr.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestUpdateWithinWindow(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })
	svc := NewService(repo, Config{Now: func() time.Time { return now }})

	rec := mustMark(t, svc, "stu-1", "cs101", now, StatusAbsent)

	now = now.Add(2 * time.Hour)
	status := StatusPresent
	updated, err := svc.Update(context.Background(), facultyCtx, rec.ID, Patch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, updated.Status)

	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, sum.Percentage, 0.001)
}

func TestUpdateLockedAfterWindow(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })
	svc := NewService(repo, Config{Now: func() time.Time { return now }})

	rec := mustMark(t, svc, "stu-1", "cs101", now, StatusAbsent)

	now = now.Add(49 * time.Hour)
	status := StatusPresent
	_, err := svc.Update(context.Background(), facultyCtx, rec.ID, Patch{Status: &status})
	var lerr *apperr.LockedRecordError
	require.ErrorAs(t, err, &lerr)

	// a locked record still feeds recompute
	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sum.Percentage, 0.001)
}

func TestUpdateByStrangerRejected(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	svc := NewService(repo, Config{})

	rec := mustMark(t, svc, "stu-1", "cs101", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StatusAbsent)

	status := StatusPresent
	other := auth.Context{AccountID: "stu-9", Role: auth.RoleStudent}
	_, err := svc.Update(context.Background(), other, rec.ID, Patch{Status: &status})
	require.Error(t, err)

	// an approver who is not the marker may edit, and gets stamped
	admin := auth.Context{AccountID: "admin-1", Role: auth.RoleAdmin}
	updated, err := svc.Update(context.Background(), admin, rec.ID, Patch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", updated.ApprovedBy)
}

func TestMarkBulkRecomputesEveryStudent(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")
	repo.AddStudent("stu-2")

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records, err := svc.MarkBulk(context.Background(), facultyCtx, "cs101", date, []BulkEntry{
		{StudentID: "stu-1", Status: StatusPresent},
		{StudentID: "stu-2", Status: StatusAbsent},
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	pct1, err := repo.StudentPercent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pct1, 0.001)

	pct2, err := repo.StudentPercent(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, pct2, 0.001)
}

func TestMarkBulkDuplicateAbortsWholeSheet(t *testing.T) {
	svc, repo := newTestService(t)
	repo.AddStudent("stu-1")
	repo.AddStudent("stu-2")

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mustMark(t, svc, "stu-2", "cs101", date, StatusPresent)
	_, err := svc.Recompute(context.Background(), "stu-2")
	require.NoError(t, err)

	_, err = svc.MarkBulk(context.Background(), facultyCtx, "cs101", date, []BulkEntry{
		{StudentID: "stu-1", Status: StatusPresent},
		{StudentID: "stu-2", Status: StatusAbsent}, // duplicate day
	})
	var cerr *apperr.ConflictError
	require.ErrorAs(t, err, &cerr)

	// nothing from the sheet landed
	records, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	pct, err := repo.StudentPercent(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pct, 0.001)
}

func TestDefaulterAlertPublishedOnCrossing(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	alerts := queue.NewInMemory(8)
	svc := NewService(repo, Config{Alerts: alerts})

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, i), StatusPresent)
	}
	_, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)

	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 3), StatusAbsent)
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 4), StatusAbsent)
	sum, err := svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, sum.IsDefaulter)

	msgs, err := alerts.Consume(context.Background())
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, queue.TypeDefaulterAlert, msg.Type)
		assert.Equal(t, "stu-1|60.0", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("expected a defaulter alert")
	}

	// dropping further while already below does not re-alert
	mustMark(t, svc, "stu-1", "cs101", base.AddDate(0, 0, 5), StatusAbsent)
	_, err = svc.Recompute(context.Background(), "stu-1")
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		t.Fatalf("unexpected second alert: %q", msg.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDashboardTrendFixedLength(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc := NewService(repo, Config{Now: func() time.Time { return end }})

	// records on only two of the seven days
	mustMark(t, svc, "stu-1", "cs101", end, StatusPresent)
	mustMark(t, svc, "stu-1", "cs101", end.AddDate(0, 0, -2), StatusAbsent)

	dash, err := svc.DashboardSummary(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, dash.Trend, 7)

	assert.Equal(t, "2026-03-04", dash.Trend[0].Day)
	assert.Equal(t, "2026-03-10", dash.Trend[6].Day)
	assert.InDelta(t, 0.0, dash.Trend[0].Rate, 0.001)
	assert.InDelta(t, 0.0, dash.Trend[4].Rate, 0.001) // absent day
	assert.InDelta(t, 100.0, dash.Trend[6].Rate, 0.001)

	assert.Equal(t, 2, dash.TotalRecords)
	assert.InDelta(t, 50.0, dash.Rate, 0.001)
}

func TestDashboardRespectsDateWindow(t *testing.T) {
	repo := NewMemoryRepository()
	repo.AddStudent("stu-1")
	svc := NewService(repo, Config{TrendDays: 3})

	end := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	mustMark(t, svc, "stu-1", "cs101", end, StatusPresent)
	mustMark(t, svc, "stu-1", "cs101", end.AddDate(0, 0, -10), StatusAbsent) // outside window

	dash, err := svc.DashboardSummary(context.Background(), Filter{
		From: end.AddDate(0, 0, -2),
		To:   end,
	})
	require.NoError(t, err)
	require.Len(t, dash.Trend, 3)
	assert.Equal(t, 1, dash.TotalRecords)
	assert.InDelta(t, 100.0, dash.Rate, 0.001)
}

func TestRound1(t *testing.T) {
	assert.InDelta(t, 76.7, round1(76.666666), 0.0001)
	assert.InDelta(t, 74.9, round1(74.94), 0.0001)
	assert.InDelta(t, 75.0, round1(74.96), 0.0001)
}
