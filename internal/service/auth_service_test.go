package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/pkg/cache"
	"github.com/shs-portal/enrollment-api/pkg/config"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

type mockAuthUsers struct {
	users      map[string]models.User
	lastLogins map[string]time.Time
	passwords  map[string]string
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogins == nil {
		m.lastLogins = make(map[string]time.Time)
	}
	m.lastLogins[id] = ts
	return nil
}

func (m *mockAuthUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

type mockAuthStudents struct {
	students  map[string]models.Student
	passwords map[string]string
}

func (m *mockAuthStudents) FindByLogin(ctx context.Context, login string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Email == login || s.StudentNumber == login {
			student := s
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudents) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

type mockCodeStore struct {
	codes map[string]string
}

func (m *mockCodeStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[email] = code
	return nil
}

func (m *mockCodeStore) Get(ctx context.Context, email string) (string, error) {
	code, ok := m.codes[email]
	if !ok {
		return "", cache.ErrCodeNotFound
	}
	return code, nil
}

func (m *mockCodeStore) Delete(ctx context.Context, email string) error {
	delete(m.codes, email)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func staffUser(t *testing.T) models.User {
	return models.User{
		ID:           "usr-1",
		Email:        "staff@school.edu.ph",
		PasswordHash: hashOf(t, "s3cret!"),
		FullName:     "Maria Santos",
		Role:         models.RoleStaff,
		Active:       true,
	}
}

func newAuthService(users *mockAuthUsers, students *mockAuthStudents, codes *mockCodeStore, notify *mockNotifier) *AuthService {
	if users == nil {
		users = &mockAuthUsers{}
	}
	if students == nil {
		students = &mockAuthStudents{}
	}
	if codes == nil {
		codes = &mockCodeStore{}
	}
	if notify == nil {
		notify = &mockNotifier{}
	}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
	return NewAuthService(users, students, codes, notify, cfg, 10*time.Minute, nil, nil)
}

func TestLoginIssuesStaffToken(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	svc := newAuthService(users, nil, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "staff@school.edu.ph",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleStaff, resp.User.Role)
	assert.Contains(t, users.lastLogins, "usr-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
	assert.Equal(t, "Maria Santos", claims.FullName)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	svc := newAuthService(users, nil, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "staff@school.edu.ph",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	user := staffUser(t)
	user.Active = false
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": user}}
	svc := newAuthService(users, nil, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "staff@school.edu.ph",
		Password: "s3cret!",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoginFallsBackToStudentNumber(t *testing.T) {
	students := &mockAuthStudents{students: map[string]models.Student{
		"stu-1": {
			ID:            "stu-1",
			StudentNumber: "2026-00001",
			Email:         "juan.dc@example.com",
			FirstName:     "Juan",
			LastName:      "Dela Cruz",
			PasswordHash:  hashOf(t, "temppass"),
		},
	}}
	svc := newAuthService(nil, students, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "2026-00001",
		Password: "temppass",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, "Juan Dela Cruz", resp.User.FullName)
}

func TestLoginUnknownAccount(t *testing.T) {
	svc := newAuthService(nil, nil, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	svc := newAuthService(users, nil, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "staff@school.edu.ph",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	other := NewAuthService(&mockAuthUsers{}, &mockAuthStudents{}, &mockCodeStore{}, &mockNotifier{},
		config.JWTConfig{Secret: "different-secret", Expiration: time.Hour}, 10*time.Minute, nil, nil)
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRequestPasswordResetStoresCodeAndNotifies(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	codes := &mockCodeStore{}
	notify := &mockNotifier{}
	svc := newAuthService(users, nil, codes, notify)

	err := svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{
		Email: "staff@school.edu.ph",
	})
	require.NoError(t, err)

	code, ok := codes.codes["staff@school.edu.ph"]
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	require.Len(t, notify.messages, 1)
	assert.Equal(t, "staff@school.edu.ph", notify.messages[0].ToAddress)
	assert.Contains(t, notify.messages[0].HTMLBody, code)
}

func TestRequestPasswordResetHidesUnknownEmail(t *testing.T) {
	codes := &mockCodeStore{}
	notify := &mockNotifier{}
	svc := newAuthService(nil, nil, codes, notify)

	// same nil result as the known-account path, so callers cannot probe
	err := svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{
		Email: "nobody@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, codes.codes)
	assert.Empty(t, notify.messages)
}

func TestConfirmPasswordResetInstallsNewPassword(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	codes := &mockCodeStore{codes: map[string]string{"staff@school.edu.ph": "123456"}}
	svc := newAuthService(users, nil, codes, nil)

	err := svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{
		Email:       "staff@school.edu.ph",
		Code:        "123456",
		NewPassword: "brand-new-pass",
	})
	require.NoError(t, err)

	hash, ok := users.passwords["usr-1"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-pass")))

	// the code is single use
	_, err = codes.Get(context.Background(), "staff@school.edu.ph")
	assert.ErrorIs(t, err, cache.ErrCodeNotFound)
}

func TestConfirmPasswordResetRejectsWrongCode(t *testing.T) {
	users := &mockAuthUsers{users: map[string]models.User{"usr-1": staffUser(t)}}
	codes := &mockCodeStore{codes: map[string]string{"staff@school.edu.ph": "123456"}}
	svc := newAuthService(users, nil, codes, nil)

	err := svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{
		Email:       "staff@school.edu.ph",
		Code:        "654321",
		NewPassword: "brand-new-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, users.passwords)
}

func TestConfirmPasswordResetUpdatesStudentAccount(t *testing.T) {
	students := &mockAuthStudents{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Email: "juan.dc@example.com", StudentNumber: "2026-00001"},
	}}
	codes := &mockCodeStore{codes: map[string]string{"juan.dc@example.com": "123456"}}
	svc := newAuthService(nil, students, codes, nil)

	err := svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{
		Email:       "juan.dc@example.com",
		Code:        "123456",
		NewPassword: "brand-new-pass",
	})
	require.NoError(t, err)

	hash, ok := students.passwords["stu-1"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-pass")))
}
