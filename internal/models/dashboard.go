package models

import "time"

// StatusCount is a generic grouped count row.
type StatusCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// SectionHeadcount reports roster size per section.
type SectionHeadcount struct {
	Section    string `db:"section" json:"section"`
	GradeLevel int    `db:"grade_level" json:"grade_level"`
	Count      int    `db:"count" json:"count"`
}

// DashboardRange optionally bounds statistics by record creation time.
type DashboardRange struct {
	From *time.Time
	To   *time.Time
}

// DashboardStats aggregates registrar statistics.
type DashboardStats struct {
	ApplicantsByStatus []StatusCount      `json:"applicants_by_status"`
	StudentsByStatus   []StatusCount      `json:"students_by_status"`
	StudentsByGrade    []StatusCount      `json:"students_by_grade"`
	StudentsByStrand   []StatusCount      `json:"students_by_strand"`
	SectionHeadcounts  []SectionHeadcount `json:"section_headcounts"`
	GeneratedAt        time.Time          `json:"generated_at"`
}
