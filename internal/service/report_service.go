package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/export"
)

type reportSectionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type reportStudentRepository interface {
	FindBySection(ctx context.Context, sectionName string) ([]models.Student, error)
}

// ReportFile is a rendered export ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders registrar exports of section enrollment lists.
type ReportService struct {
	sections reportSectionRepository
	students reportStudentRepository
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(sections reportSectionRepository, students reportStudentRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		sections: sections,
		students: students,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// SectionEnrollmentList exports the roster of one section as CSV or PDF.
func (s *ReportService) SectionEnrollmentList(ctx context.Context, sectionID, format string) (*ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	students, err := s.students.FindBySection(ctx, section.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section students")
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName == students[j].LastName {
			return students[i].FirstName < students[j].FirstName
		}
		return students[i].LastName < students[j].LastName
	})

	dataset := export.Dataset{
		Headers: []string{"Student Number", "Name", "LRN", "Sex", "Status", "Type"},
	}
	for i := range students {
		st := &students[i]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student Number": st.StudentNumber,
			"Name":           st.LastName + ", " + st.FirstName,
			"LRN":            st.LRN,
			"Sex":            st.Sex,
			"Status":         string(st.Status),
			"Type":           string(st.StudentType),
		})
	}

	baseName := fmt.Sprintf("section-%s-enrollment", strings.ReplaceAll(strings.ToLower(section.Name), " ", "-"))
	if format == "csv" {
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ReportFile{Filename: baseName + ".csv", ContentType: "text/csv", Data: data}, nil
	}

	title := fmt.Sprintf("%s - Grade %d %s (Semester %s)", section.Name, section.GradeLevel, section.Strand, section.Semester)
	data, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return &ReportFile{Filename: baseName + ".pdf", ContentType: "application/pdf", Data: data}, nil
}
