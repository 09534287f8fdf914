package models

import (
	"database/sql/driver"
	"time"
)

// SubjectType categorises a subject offering.
type SubjectType string

const (
	SubjectTypeCore        SubjectType = "core"
	SubjectTypeSpecialized SubjectType = "specialized"
	SubjectTypeApplied     SubjectType = "applied"
)

// SectionOffering schedules a subject for one section.
type SectionOffering struct {
	ID          string `json:"id"`
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Room        string `json:"room"`
}

// SectionOfferings is the embedded JSONB offering list.
type SectionOfferings []SectionOffering

// Value implements driver.Valuer.
func (o SectionOfferings) Value() (driver.Value, error) {
	if o == nil {
		o = SectionOfferings{}
	}
	return jsonbValue(o)
}

// Scan implements sql.Scanner.
func (o *SectionOfferings) Scan(src interface{}) error { return jsonbScan(src, o) }

// ForSection returns the offering for a section name, or nil.
func (o SectionOfferings) ForSection(sectionName string) *SectionOffering {
	for i := range o {
		if o[i].SectionName == sectionName {
			return &o[i]
		}
	}
	return nil
}

// Subject is a course offering, possibly taught across multiple sections
// with different schedules.
type Subject struct {
	ID         string      `db:"id" json:"id"`
	Code       string      `db:"code" json:"code"`
	Name       string      `db:"name" json:"name"`
	GradeLevel int         `db:"grade_level" json:"grade_level"`
	Strand     string      `db:"strand" json:"strand"`
	Track      string      `db:"track" json:"track"`
	Semester   string      `db:"semester" json:"semester"`
	Type       SubjectType `db:"type" json:"type"`

	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`

	Students  StringList       `db:"students" json:"students"`
	Offerings SectionOfferings `db:"offerings" json:"offerings"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter encapsulates supported list filters.
type SubjectFilter struct {
	GradeLevel int
	Strand     string
	Track      string
	Semester   string
	Type       SubjectType
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
