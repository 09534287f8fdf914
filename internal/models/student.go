package models

import (
	"database/sql/driver"
	"time"
)

// StudentStatus models the enrollment state machine:
// pending -> enrolled -> {unenrolled, dropped, graduated};
// unenrolled -> pending -> enrolled (repeater re-request).
type StudentStatus string

const (
	StudentStatusPending    StudentStatus = "pending"
	StudentStatusEnrolled   StudentStatus = "enrolled"
	StudentStatusUnenrolled StudentStatus = "unenrolled"
	StudentStatusDropped    StudentStatus = "dropped"
	StudentStatusGraduated  StudentStatus = "graduated"
)

// StudentType distinguishes the subject-assignment path.
type StudentType string

const (
	StudentTypeRegular   StudentType = "regular"
	StudentTypeRepeater  StudentType = "repeater"
	StudentTypeGraduated StudentType = "graduated"
)

// ScheduleInfo is the meeting window for a subject in a section.
type ScheduleInfo struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room"`
}

// SubjectAssignment is a denormalised subject entry on a student record.
type SubjectAssignment struct {
	SubjectID string       `json:"subject_id"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Teacher   string       `json:"teacher"`
	Semester  string       `json:"semester"`
	Schedule  ScheduleInfo `json:"schedule"`
}

// SubjectAssignments is the JSONB list of current subject assignments.
type SubjectAssignments []SubjectAssignment

// Value implements driver.Valuer.
func (s SubjectAssignments) Value() (driver.Value, error) {
	if s == nil {
		s = SubjectAssignments{}
	}
	return jsonbValue(s)
}

// Scan implements sql.Scanner.
func (s *SubjectAssignments) Scan(src interface{}) error { return jsonbScan(src, s) }

// Holds reports whether the subject is currently assigned.
func (s SubjectAssignments) Holds(subjectID string) bool {
	for _, a := range s {
		if a.SubjectID == subjectID {
			return true
		}
	}
	return false
}

// RegistrationEntry is an immutable point-in-time snapshot of an enrollment
// event. Only schedule/room metadata on the most recent entry may be patched
// when a live subject offering changes.
type RegistrationEntry struct {
	GradeLevel   int                `json:"grade_level"`
	Semester     string             `json:"semester"`
	Section      string             `json:"section"`
	SchoolYear   string             `json:"school_year"`
	Subjects     SubjectAssignments `json:"subjects"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// RegistrationHistory is the append-only JSONB snapshot list.
type RegistrationHistory []RegistrationEntry

// Value implements driver.Valuer.
func (h RegistrationHistory) Value() (driver.Value, error) {
	if h == nil {
		h = RegistrationHistory{}
	}
	return jsonbValue(h)
}

// Scan implements sql.Scanner.
func (h *RegistrationHistory) Scan(src interface{}) error { return jsonbScan(src, h) }

// Latest returns a pointer into the most recent entry, or nil when empty.
func (h RegistrationHistory) Latest() *RegistrationEntry {
	if len(h) == 0 {
		return nil
	}
	return &h[len(h)-1]
}

// CarryoverSubject is a repeater's explicit subject to retake.
type CarryoverSubject struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Semester string `json:"semester"`
	Status   string `json:"status"`
}

// CarryoverSubjects is the JSONB carryover list.
type CarryoverSubjects []CarryoverSubject

// Value implements driver.Valuer.
func (c CarryoverSubjects) Value() (driver.Value, error) {
	if c == nil {
		c = CarryoverSubjects{}
	}
	return jsonbValue(c)
}

// Scan implements sql.Scanner.
func (c *CarryoverSubjects) Scan(src interface{}) error { return jsonbScan(src, c) }

// Student is an admitted learner with an account.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	LRN           string    `db:"lrn" json:"lrn"`
	LastName      string    `db:"last_name" json:"last_name"`
	FirstName     string    `db:"first_name" json:"first_name"`
	MiddleName    string    `db:"middle_name" json:"middle_name"`
	Extension     string    `db:"extension" json:"extension"`
	BirthDate     time.Time `db:"birth_date" json:"birth_date"`
	Sex           string    `db:"sex" json:"sex"`
	Email         string    `db:"email" json:"email"`
	ContactNumber string    `db:"contact_number" json:"contact_number"`
	Address       Address   `db:"address" json:"address"`

	GradeLevel int    `db:"grade_level" json:"grade_level"`
	Track      string `db:"track" json:"track"`
	Strand     string `db:"strand" json:"strand"`
	Semester   string `db:"semester" json:"semester"`
	Section    string `db:"section" json:"section"`

	Status      StudentStatus `db:"status" json:"status"`
	StudentType StudentType   `db:"student_type" json:"student_type"`

	Subjects            SubjectAssignments  `db:"subjects" json:"subjects"`
	RegistrationHistory RegistrationHistory `db:"registration_history" json:"registration_history"`
	CarryoverSubjects   CarryoverSubjects   `db:"carryover_subjects" json:"carryover_subjects"`

	VacatedSection      *string `db:"vacated_section" json:"vacated_section,omitempty"`
	EnrollmentRequested bool    `db:"enrollment_requested" json:"enrollment_requested"`

	PasswordHash string `db:"password_hash" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName renders the student's display name.
func (s *Student) FullName() string {
	name := s.FirstName + " " + s.LastName
	if s.Extension != "" && s.Extension != "N/A" {
		name += " " + s.Extension
	}
	return name
}

// StudentFilter encapsulates supported list filters.
type StudentFilter struct {
	Search     string
	GradeLevel int
	Strand     string
	Section    string
	Status     StudentStatus
	Type       StudentType
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
