package models

import "time"

// DateLayout is the wire format for attendance dates. Lexicographic and
// chronological ordering coincide for this layout.
const DateLayout = "2006-01-02"

// AttendanceStatus is the closed set of recordable statuses.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceEntry is the sole persisted entity of the ledger. The
// (student_id, course_id, date) triple is its natural key and must be
// unique across all entries.
type AttendanceEntry struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EntryUpdate is the typed partial-update payload. The settable fields are
// fixed here; the natural key is deliberately absent, corrections to
// student, course or date require delete plus insert.
type EntryUpdate struct {
	Status    *AttendanceStatus `json:"status,omitempty"`
	Remarks   *string           `json:"remarks,omitempty"`
	TeacherID *string           `json:"teacher_id,omitempty"`
}

// Empty reports whether the update would touch no field.
func (u EntryUpdate) Empty() bool {
	return u.Status == nil && u.Remarks == nil && u.TeacherID == nil
}

// EntryFilter scopes listing queries across the indexed dimensions.
type EntryFilter struct {
	StudentID string
	CourseID  string
	TeacherID string
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    *AttendanceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusCount is a single GROUP BY row from the aggregation query.
type StatusCount struct {
	Status AttendanceStatus `db:"status"`
	Count  int              `db:"cnt"`
}

// AttendanceStats summarises counts for a student, optionally scoped to a
// course and a semester window.
type AttendanceStats struct {
	Total              int `json:"total"`
	Present            int `json:"present"`
	Absent             int `json:"absent"`
	Late               int `json:"late"`
	Excused            int `json:"excused"`
	PresencePercentage int `json:"presence_percentage"`
}

// Semester maps a semester name onto its date range. Supplied by the
// academic calendar, read-only for this service.
type Semester struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}
