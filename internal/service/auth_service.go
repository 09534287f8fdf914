package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/pkg/cache"
	"github.com/shs-portal/enrollment-api/pkg/config"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
	"github.com/shs-portal/enrollment-api/pkg/mailer"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type authStudentRepository interface {
	FindByLogin(ctx context.Context, login string) (*models.Student, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type verificationCodeStore interface {
	Set(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}

// AuthService authenticates admins, staff and students and runs the
// verification-code password reset flow.
type AuthService struct {
	users     authUserRepository
	students  authStudentRepository
	codes     verificationCodeStore
	notify    notifier
	jwtCfg    config.JWTConfig
	codeTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs AuthService.
func NewAuthService(users authUserRepository, students authStudentRepository, codes verificationCodeStore, notify notifier, jwtCfg config.JWTConfig, codeTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &AuthService{users: users, students: students, codes: codes, notify: notify, jwtCfg: jwtCfg, codeTTL: codeTTL, validator: validate, logger: logger}
}

// Login authenticates by email (admins, staff) or email/student number
// (students) and issues an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	login := strings.TrimSpace(req.Email)

	user, err := s.users.FindByEmail(ctx, login)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if user != nil && err == nil {
		if !user.Active {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is deactivated")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return nil, appErrors.ErrInvalidCredentials
		}
		now := time.Now().UTC()
		if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			s.logger.Warn("failed to stamp last login", zap.String("user_id", user.ID), zap.Error(err))
		}
		return s.issueToken(user.ID, user.Email, user.FullName, user.Role, now)
	}

	student, err := s.students.FindByLogin(ctx, login)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	return s.issueToken(student.ID, student.Email, student.FullName(), models.RoleStudent, time.Now().UTC())
}

func (s *AuthService) issueToken(id, email, fullName string, role models.UserRole, now time.Time) (*models.LoginResponse, error) {
	expiresAt := now.Add(s.jwtCfg.Expiration)
	claims := models.JWTClaims{
		UserID:   id,
		Role:     role,
		Email:    email,
		FullName: fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.jwtCfg.Expiration.Seconds()),
		IssuedAt:    now,
		User:        models.UserInfo{ID: id, Email: email, FullName: fullName, Role: role},
	}, nil
}

// RequestPasswordReset stores a six-digit verification code and mails it.
// The response is identical whether or not the email is known, so the flow
// cannot be used to probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	fullName, found, err := s.lookupAccount(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Info("password reset requested for unknown email", zap.String("email", email))
		return nil
	}

	code, err := generateVerificationCode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}
	if err := s.codes.Set(ctx, email, code, s.codeTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store code")
	}

	s.notify.Notify(mailer.Message{
		ToName:    fullName,
		ToAddress: email,
		Subject:   "Password Reset Verification Code",
		HTMLBody: fmt.Sprintf(
			"<p>Good day %s,</p><p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>",
			fullName, code, int(s.codeTTL.Minutes())),
	})
	return nil
}

// ConfirmPasswordReset verifies the code and installs the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	stored, err := s.codes.Get(ctx, email)
	if err != nil {
		if err == cache.ErrCodeNotFound {
			return appErrors.Clone(appErrors.ErrUnauthorized, "verification code is invalid or expired")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load code")
	}
	if stored != req.Code {
		return appErrors.Clone(appErrors.ErrUnauthorized, "verification code is invalid or expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if err == nil {
		if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	} else {
		student, err := s.students.FindByLogin(ctx, email)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "account not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
		}
		if err := s.students.UpdatePassword(ctx, student.ID, string(hash)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	}

	if err := s.codes.Delete(ctx, email); err != nil {
		s.logger.Warn("failed to invalidate verification code", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// ValidateToken parses and validates an access token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) lookupAccount(ctx context.Context, email string) (string, bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user.FullName, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	student, err := s.students.FindByLogin(ctx, email)
	if err == nil {
		return student.FullName(), true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return "", false, nil
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
