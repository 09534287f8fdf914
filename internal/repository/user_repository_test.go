package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs-portal/enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestUserRepositoryListFiltersByRoleAndActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("usr-1", "staff@school.edu.ph", "hash", "Maria Santos", "STAFF", true, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("STAFF", true).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("STAFF", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	role := models.RoleStaff
	active := true
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Active: &active})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Maria Santos", users[0].FullName)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("usr-1", "staff@school.edu.ph", "hash", "Maria Santos", "STAFF", true, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("staff@school.edu.ph").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "staff@school.edu.ph")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", user.ID)
	assert.Equal(t, models.RoleStaff, user.Role)
}

func TestUserRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery("SELECT 1 FROM users").
		WithArgs("staff@school.edu.ph", "usr-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "staff@school.edu.ph", "usr-2")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM users").
		WithArgs("new@school.edu.ph").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err = repo.ExistsByEmail(context.Background(), "new@school.edu.ph", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:        "staff@school.edu.ph",
		PasswordHash: "hash",
		FullName:     "Maria Santos",
		Role:         models.RoleStaff,
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	ts := time.Now().UTC()
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("usr-1", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "usr-1", ts))
}
