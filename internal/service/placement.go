package service

import (
	"time"

	"github.com/shs-portal/enrollment-api/internal/models"
)

// buildAssignment denormalises a subject onto a student record, pulling the
// schedule for the student's section when the subject offers one there.
func buildAssignment(subject *models.Subject, sectionName string) models.SubjectAssignment {
	assignment := models.SubjectAssignment{
		SubjectID: subject.ID,
		Code:      subject.Code,
		Name:      subject.Name,
		Teacher:   subject.TeacherName,
		Semester:  subject.Semester,
	}
	if offering := subject.Offerings.ForSection(sectionName); offering != nil {
		assignment.Schedule = models.ScheduleInfo{
			StartTime: offering.StartTime,
			EndTime:   offering.EndTime,
			Room:      offering.Room,
		}
	}
	return assignment
}

// upsertHistory records an enrollment snapshot. A snapshot already present
// for the same grade and semester is replaced in place instead of appended,
// so re-running the same enrollment event never duplicates history.
func upsertHistory(student *models.Student, schoolYear string, now time.Time) {
	entry := models.RegistrationEntry{
		GradeLevel:   student.GradeLevel,
		Semester:     student.Semester,
		Section:      student.Section,
		SchoolYear:   schoolYear,
		Subjects:     student.Subjects,
		RegisteredAt: now,
	}
	for i := range student.RegistrationHistory {
		if student.RegistrationHistory[i].GradeLevel == entry.GradeLevel && student.RegistrationHistory[i].Semester == entry.Semester {
			student.RegistrationHistory[i] = entry
			return
		}
	}
	student.RegistrationHistory = append(student.RegistrationHistory, entry)
}

// deriveRepeaterSemester picks the semester a repeater should be placed in
// from their carryover list. First semester wins when both are present.
func deriveRepeaterSemester(carryover models.CarryoverSubjects, fallback string) string {
	hasSecond := false
	for _, c := range carryover {
		if c.Semester == "1" {
			return "1"
		}
		if c.Semester == "2" {
			hasSecond = true
		}
	}
	if hasSecond {
		return "2"
	}
	return fallback
}

// matchCarryover returns the candidate subjects a repeater's carryover list
// resolves to for the given semester. Matching is by code, name and semester.
func matchCarryover(carryover models.CarryoverSubjects, candidates []models.Subject, semester string) []models.Subject {
	var matched []models.Subject
	for _, c := range carryover {
		if c.Semester != semester {
			continue
		}
		for i := range candidates {
			if candidates[i].Code == c.Code && candidates[i].Name == c.Name && candidates[i].Semester == c.Semester {
				matched = append(matched, candidates[i])
				break
			}
		}
	}
	return matched
}

// stripSubjectEntry removes a subject from an assignment list. The result is
// a fresh slice; live and history lists may share backing storage.
func stripSubjectEntry(assignments models.SubjectAssignments, subjectID string) models.SubjectAssignments {
	out := make(models.SubjectAssignments, 0, len(assignments))
	for _, a := range assignments {
		if a.SubjectID != subjectID {
			out = append(out, a)
		}
	}
	return out
}
