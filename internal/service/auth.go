package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
)

const minPasswordLength = 6

var errInvalidCredentials = apperror.New(apperror.KindUnauthorized, "Invalid credentials")

// TokenService is the subset of the token service used by AuthService.
type TokenService interface {
	IssuePair(subject string) (models.TokenPair, error)
	ValidateAccess(ctx context.Context, token string) bool
	Rotate(ctx context.Context, subject, oldRefresh string) (models.TokenPair, error)
	Revoke(ctx context.Context, token string) error
	SubjectOf(token string) (string, error)
}

// AuthService handles registration, login, token refresh and user administration
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenService
	log    *logrus.Logger
}

// NewAuthService initializes a new auth service
func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenService, log *logrus.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, log: log}
}

// RegisterParams are the inputs of a self-service registration
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a new user with a hashed password and ROLE_USER
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	return s.createUser(ctx, p, []models.Role{models.RoleUser})
}

func (s *AuthService) createUser(ctx context.Context, p RegisterParams, roles []models.Role) (*models.User, error) {
	email := strings.TrimSpace(p.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, "Invalid email", err)
	}
	if len(p.Password) < minPasswordLength {
		return nil, apperror.New(apperror.KindBadRequest, "Password is too short")
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, apperror.New(apperror.KindConflict, "User already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, "User not found")
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to hash password", err)
	}

	user := &models.User{
		Email:        email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Wrap(apperror.KindConflict, "User already exists", err)
		}
		return nil, storeError(err, "User not found")
	}

	s.log.Infof("New user registered: email=%s, id=%s", user.Email, user.ID)
	return user, nil
}

// EnsureAdmin creates an administrator account if none exists for email
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storeError(err, "User not found")
	}
	_, err = s.createUser(ctx, RegisterParams{Email: email, Password: password},
		[]models.Role{models.RoleUser, models.RoleAdmin})
	return err
}

// Login verifies credentials and issues an access/refresh pair
func (s *AuthService) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	s.log.Infof("User signIn attempt: email=%s", email)
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TokenPair{}, errInvalidCredentials
		}
		return models.TokenPair{}, storeError(err, "User not found")
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return models.TokenPair{}, errInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.Email)
	if err != nil {
		return models.TokenPair{}, apperror.Wrap(apperror.KindInternal, "failed to issue tokens", err)
	}
	s.log.Debugf("User signIn success: email=%s", user.Email)
	return pair, nil
}

// Refresh rotates refreshToken into a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	subject, err := s.tokens.SubjectOf(refreshToken)
	if err != nil {
		return models.TokenPair{}, apperror.Wrap(apperror.KindInvalidRefreshToken, "Invalid or expired refresh token", err)
	}
	s.log.Infof("Refresh token rotation for email=%s", subject)
	return s.tokens.Rotate(ctx, subject, refreshToken)
}

// Logout revokes every non-empty token given
func (s *AuthService) Logout(ctx context.Context, tokens ...string) error {
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if err := s.tokens.Revoke(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate resolves a valid access token to its user
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if !s.tokens.ValidateAccess(ctx, accessToken) {
		return nil, apperror.New(apperror.KindUnauthorized, "Invalid or expired token")
	}
	subject, err := s.tokens.SubjectOf(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Wrap(apperror.KindUnauthorized, "Invalid or expired token", err)
		}
		return nil, storeError(err, "User not found")
	}
	return user, nil
}

// ListUsers returns one page of users
func (s *AuthService) ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	users, err := s.users.ListUsers(ctx, page)
	if err != nil {
		return models.Page[models.User]{}, storeError(err, "User not found")
	}
	return users, nil
}

// SetRole grants (enabled) or withdraws a role
func (s *AuthService) SetRole(ctx context.Context, userID uuid.UUID, role models.Role, enabled bool) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return apperror.New(apperror.KindBadRequest, "Unknown role")
	}
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return storeError(err, "User not found")
	}

	roles := make([]models.Role, 0, len(user.Roles)+1)
	for _, r := range user.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	if enabled {
		roles = append(roles, role)
	}
	if err := s.users.UpdateUserRoles(ctx, userID, roles); err != nil {
		return storeError(err, "User not found")
	}
	s.log.Infof("Role %s set to %t for user %s", role, enabled, userID)
	return nil
}

// DeleteUser removes a user together with their cards
func (s *AuthService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return storeError(err, "User not found")
	}
	s.log.Infof("User deleted: id=%s", userID)
	return nil
}
