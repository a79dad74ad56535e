package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type UserService struct {
	store       store.Store
	logger      zerolog.Logger
	adminEmails map[string]bool
	now         func() time.Time
}

// NewUserService registers any user whose email is in adminEmails as an admin.
func NewUserService(st store.Store, logger zerolog.Logger, adminEmails []string) *UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &UserService{
		store:       st,
		logger:      logger,
		adminEmails: admins,
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidRequest)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, minPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.now().UTC(),
	}
	isAdmin := s.adminEmails[email]

	err = s.store.WithTx(ctx, func(repo store.Repository) error {
		if err := repo.CreateUser(ctx, user); err != nil {
			return err
		}
		if isAdmin {
			return repo.AddAdmin(ctx, user.ID)
		}
		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: user with this email", ErrConflict)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.IsAdmin = isAdmin
	s.logger.Info().Str("user_id", user.ID).Bool("admin", isAdmin).Msg("User registered")
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if user.IsAdmin, err = s.store.IsAdmin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to check admin: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if user.IsAdmin, err = s.store.IsAdmin(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to check admin: %w", err)
	}
	return user, nil
}

// RequireAdmin fails with ErrUnauthorized for an anonymous caller and
// ErrForbidden for a caller outside the admins set.
func (s *UserService) RequireAdmin(ctx context.Context, callerID string) error {
	if callerID == "" {
		return fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	ok, err := s.store.IsAdmin(ctx, callerID)
	if err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
