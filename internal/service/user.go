package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/apperr"
	"github.com/Blackades/med-alert-hub-sub000/internal/audit"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

// UserRepositoryInterface defines the interface for user storage
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

// UserService registers the owners of medications
type UserService struct {
	repo            UserRepositoryInterface
	audit           AuditLogger
	defaultTimezone string
	logger          *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepositoryInterface, auditLogger AuditLogger, defaultTimezone string, logger *zap.Logger) *UserService {
	return &UserService{
		repo:            repo,
		audit:           orNop(auditLogger),
		defaultTimezone: defaultTimezone,
		logger:          logger,
	}
}

// CreateUser validates and stores a new user
func (s *UserService) CreateUser(ctx context.Context, user *model.User) error {
	user.Name = strings.TrimSpace(user.Name)
	if user.Name == "" {
		return apperr.Validation("name", "is required")
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return apperr.Validation("email", "must be a valid email address")
	}
	if user.Timezone == "" {
		user.Timezone = s.defaultTimezone
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(user.Timezone); err != nil {
		return apperr.Validation("timezone", "unknown time zone %q", user.Timezone)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.repo.Create(ctx, user); err != nil {
		s.logger.Error("failed to create user", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("failed to create user: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, audit.AuditLog{
		UserID:        user.ID,
		OperationType: audit.OperationCreate,
		ResourceType:  audit.ResourceUser,
		ResourceID:    user.ID,
	})

	s.logger.Info("user created", zap.String("user_id", user.ID))
	return nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}
	return s.repo.FindByID(ctx, userID)
}
