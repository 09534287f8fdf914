package models

import "time"

// Section is a named cohort of students sharing grade/track/strand/semester.
type Section struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	GradeLevel     int    `db:"grade_level" json:"grade_level"`
	Track          string `db:"track" json:"track"`
	Strand         string `db:"strand" json:"strand"`
	Semester       string `db:"semester" json:"semester"`
	Capacity       int    `db:"capacity" json:"capacity"`
	OpenEnrollment bool   `db:"open_enrollment" json:"open_enrollment"`

	// Students is the roster; ConfirmedStudents tracks members whose
	// enrollment the registrar has confirmed.
	Students          StringList `db:"students" json:"students"`
	ConfirmedStudents StringList `db:"confirmed_students" json:"confirmed_students"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SectionFilter encapsulates supported list filters.
type SectionFilter struct {
	GradeLevel int
	Strand     string
	Semester   string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
