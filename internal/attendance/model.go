package attendance

import "time"

// Status values an attendance record can carry.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
	StatusOnDuty  = "on_duty"
)

// ValidStatus reports whether s is a known attendance status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusOnDuty:
		return true
	}
	return false
}

// Record is a single attendance entry. At most one record exists per
// (student, course, date). Identity fields never change after creation;
// status and remarks stay mutable for the edit window only.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	TimeIn      string    `json:"time_in,omitempty"`
	TimeOut     string    `json:"time_out,omitempty"`
	MarkedBy    string    `json:"marked_by,omitempty"`
	Remarks     string    `json:"remarks,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	EvidenceURL string    `json:"evidence_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRecord describes a record to mark.
type NewRecord struct {
	StudentID   string
	CourseID    string
	Date        time.Time
	Status      string
	TimeIn      string
	TimeOut     string
	Remarks     string
	Reason      string
	EvidenceURL string
}

// Patch carries the mutable fields of an update. Nil fields are left as is.
type Patch struct {
	Status  *string
	Remarks *string
	Reason  *string
}

// Filter narrows record queries. Zero values mean "no constraint".
type Filter struct {
	StudentID    string
	CourseID     string
	DepartmentID string
	From         time.Time
	To           time.Time
}

// Summary is the per-student aggregation result of a recompute.
type Summary struct {
	StudentID   string  `json:"student_id"`
	Total       int     `json:"total"`
	Attended    int     `json:"attended"`
	Absent      int     `json:"absent"`
	Late        int     `json:"late"`
	Excused     int     `json:"excused"`
	Percentage  float64 `json:"percentage"`
	IsDefaulter bool    `json:"is_defaulter"`
}

// TrendPoint is one calendar day of the dashboard trend. Days without
// records report a rate of 0.0 so the series keeps a fixed length.
type TrendPoint struct {
	Day  string  `json:"day"`
	Rate float64 `json:"rate"`
}

// Dashboard aggregates attendance over a window for charting.
type Dashboard struct {
	TotalRecords int          `json:"total_records"`
	Attended     int          `json:"attended"`
	Rate         float64      `json:"rate"`
	Trend        []TrendPoint `json:"trend"`
}
