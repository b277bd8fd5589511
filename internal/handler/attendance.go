package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campusconnect/internal/apperr"
	"campusconnect/internal/attendance"
)

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.NewValidationError("date must be YYYY-MM-DD",
			apperr.FieldError{Field: "date", Error: "expected YYYY-MM-DD"})
	}
	return t, nil
}

// MarkAttendance records one attendance entry and recomputes the student's
// cached percentage as an explicit follow-up step.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req struct {
		StudentID   string `json:"student_id" binding:"required"`
		CourseID    string `json:"course_id" binding:"required"`
		Date        string `json:"date" binding:"required"`
		Status      string `json:"status" binding:"required"`
		TimeIn      string `json:"time_in"`
		TimeOut     string `json:"time_out"`
		Remarks     string `json:"remarks"`
		Reason      string `json:"reason"`
		EvidenceURL string `json:"evidence_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(c, err)
		return
	}
	authz := mustAuthz(c)
	rec, err := h.att.Mark(c.Request.Context(), authz, attendance.NewRecord{
		StudentID:   req.StudentID,
		CourseID:    req.CourseID,
		Date:        date,
		Status:      req.Status,
		TimeIn:      req.TimeIn,
		TimeOut:     req.TimeOut,
		Remarks:     req.Remarks,
		Reason:      req.Reason,
		EvidenceURL: req.EvidenceURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	summary, err := h.att.Recompute(c.Request.Context(), rec.StudentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec, "summary": summary})
}

// MarkBulkAttendance records a full class sheet atomically.
func (h *Handler) MarkBulkAttendance(c *gin.Context) {
	var req struct {
		CourseID string                 `json:"course_id" binding:"required"`
		Date     string                 `json:"date" binding:"required"`
		Entries  []attendance.BulkEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := h.att.MarkBulk(c.Request.Context(), mustAuthz(c), req.CourseID, date, req.Entries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"marked": len(records), "records": records})
}

// UpdateAttendance mutates a record within its edit window, then recomputes.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req struct {
		Status  *string `json:"status"`
		Remarks *string `json:"remarks"`
		Reason  *string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.att.Update(c.Request.Context(), mustAuthz(c), c.Param("id"),
		attendance.Patch{Status: req.Status, Remarks: req.Remarks, Reason: req.Reason})
	if err != nil {
		writeError(c, err)
		return
	}
	summary, err := h.att.Recompute(c.Request.Context(), rec.StudentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "summary": summary})
}

// ListAttendance returns records with basic filters, newest first.
func (h *Handler) ListAttendance(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	records, err := h.att.ListRecords(c.Request.Context(), f, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// RecomputeStudent rescans one student's records and refreshes the cache.
func (h *Handler) RecomputeStudent(c *gin.Context) {
	summary, err := h.att.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Dashboard returns aggregate attendance plus headline counts for the
// landing page.
func (h *Handler) Dashboard(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dash, err := h.att.DashboardSummary(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	studentCount, _ := h.students.CountActive(ctx)
	facultyCount, _ := h.faculty.CountActive(ctx)
	courseCount, _ := h.courses.CountActive(ctx)
	c.JSON(http.StatusOK, gin.H{
		"attendance":    dash,
		"student_count": studentCount,
		"faculty_count": facultyCount,
		"course_count":  courseCount,
	})
}

func filterFromQuery(c *gin.Context) (attendance.Filter, error) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		return attendance.Filter{}, err
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return attendance.Filter{}, err
	}
	return attendance.Filter{
		StudentID:    c.Query("student_id"),
		CourseID:     c.Query("course_id"),
		DepartmentID: c.Query("department_id"),
		From:         from,
		To:           to,
	}, nil
}
