package user

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

type Service struct {
	repo       Repository
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Create registers an account. It is an admin action: self-registration does
// not exist in this system.
func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	u := &User{
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		Status:       auth.StatusActive,
		RoleID:       dto.RoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	entry := audit.NewEntry(actor.ID, audit.ActionCreate, ResourceType, dto.Email, map[string]any{
		"email": dto.Email,
	})
	if err := s.repo.Create(ctx, u, entry); err != nil {
		s.logger.Error("user creation failed", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "actor_id", actor.ID)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, error) {
	return s.repo.List(ctx, limit, offset)
}

// AssignRole reassigns the user's single role. The new permission set only
// reaches the user on their next token issuance.
func (s *Service) AssignRole(ctx context.Context, actor *auth.User, userID int64, roleID *int64) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}

	metadata := map[string]any{"role_id": nil}
	if roleID != nil {
		metadata["role_id"] = *roleID
	}
	entry := audit.NewEntry(actor.ID, audit.ActionUpdate, ResourceType, strconv.FormatInt(userID, 10), metadata)

	if err := s.repo.UpdateRole(ctx, userID, roleID, entry); err != nil {
		s.logger.Error("role assignment failed", "error", err, "user_id", userID, "actor_id", actor.ID)
		return err
	}

	s.logger.Info("role assigned", "user_id", userID, "actor_id", actor.ID)
	return nil
}

// Deactivate marks the account inactive. Outstanding access tokens keep
// working until expiry; refresh attempts fail immediately.
func (s *Service) Deactivate(ctx context.Context, actor *auth.User, userID int64) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}

	entry := audit.NewEntry(actor.ID, audit.ActionDelete, ResourceType, strconv.FormatInt(userID, 10), map[string]any{
		"status": string(auth.StatusInactive),
	})

	if err := s.repo.UpdateStatus(ctx, userID, auth.StatusInactive, entry); err != nil {
		s.logger.Error("user deactivation failed", "error", err, "user_id", userID, "actor_id", actor.ID)
		return err
	}

	s.logger.Info("user deactivated", "user_id", userID, "actor_id", actor.ID)
	return nil
}
