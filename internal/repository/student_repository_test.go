package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs-portal/enrollment-api/internal/models"
)

func TestStudentRepositoryNextStudentNumberAllocates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery("INSERT INTO student_number_counters").
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"last"}).AddRow(4))

	ordinal, err := repo.NextStudentNumber(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 4, ordinal)
}

func TestStudentRepositoryFindHoldingSubjectUsesContainment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery("SELECT .+ FROM students WHERE subjects").
		WithArgs(`[{"subject_id": "sub-1"}]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	students, err := repo.FindHoldingSubject(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestStudentRepositoryExistsByStudentNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery("SELECT 1 FROM students WHERE student_number").
		WithArgs("2026-00001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsByStudentNumber(context.Background(), "2026-00001", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStudentRepositoryUpdateBatchWrapsTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	students := []*models.Student{
		{ID: "stu-1", Status: models.StudentStatusEnrolled},
		{ID: "stu-2", Status: models.StudentStatusPending},
	}
	require.NoError(t, repo.UpdateBatch(context.Background(), students))
	assert.False(t, students[0].UpdatedAt.IsZero())
}

func TestStudentRepositoryUpdateBatchRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.UpdateBatch(context.Background(), []*models.Student{{ID: "stu-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stu-1")
}
