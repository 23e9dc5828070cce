package service

import (
	"context"
	"fmt"

	"github.com/shenikar/sos_dispatch_system/internal/auth"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService выпускает bearer-токены канала и HTTP API.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// RegisterInput - данные новой учётной записи.
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Role         models.Role
	ContactName  *string
	ContactPhone *string
}

type authService struct {
	users  UserRepository
	tokens *auth.TokenManager
	logger *logrus.Logger
}

func NewAuthService(users UserRepository, tokens *auth.TokenManager, logger *logrus.Logger) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register создает учётную запись и сразу выпускает токен.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Register",
		"email":   input.Email,
	})

	role := input.Role
	if role == "" {
		role = models.RoleCivilian
	}
	if !role.Valid() {
		return nil, "", validationError("role", "is not a known value")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("service: could not hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         role,
		ContactName:  input.ContactName,
		ContactPhone: input.ContactPhone,
	}

	if err := s.users.Create(ctx, user); err != nil {
		log.WithError(err).Warn("Failed to create user")
		return nil, "", fmt.Errorf("service: could not register user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("service: could not issue token: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User registered")
	return user, token, nil
}

// Login проверяет пару email/пароль и выпускает токен.
func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Login",
		"email":   email,
	})

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		log.WithError(err).Warn("Login failed")
		return nil, "", fmt.Errorf("service: login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn("Login failed: password mismatch")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("service: could not issue token: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User logged in")
	return user, token, nil
}
