package role

import (
	"context"
	"errors"
	"log/slog"

	internal "github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	r := &Role{
		Name:        dto.Name,
		IsActive:    true,
		Permissions: dto.PermissionKeys,
	}

	entry := audit.NewEntry(actor.ID, audit.ActionCreate, ResourceType, dto.Name, map[string]any{
		"name":        dto.Name,
		"permissions": dto.PermissionKeys,
	})

	if err := s.repo.Create(ctx, r, dto.PermissionKeys, entry); err != nil {
		s.logger.Error("failed to create role", "name", dto.Name, "error", err)
		return nil, err
	}

	s.logger.Info("role created", "role_id", r.ID, "name", r.Name, "actor_id", actor.ID)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Role, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// UpdatePermissions replaces a role's permission set. Access tokens already
// issued keep their old snapshot until they expire or are refreshed; only new
// token issuance observes the change.
func (s *Service) UpdatePermissions(ctx context.Context, actor *auth.User, roleID int64, permissionKeys []string) error {
	dto := UpdatePermissionsDTO{PermissionKeys: permissionKeys}
	if err := dto.Validate(); err != nil {
		return err
	}

	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	entry := audit.NewEntry(actor.ID, audit.ActionUpdate, ResourceType, r.Name, map[string]any{
		"role_id":     roleID,
		"permissions": permissionKeys,
	})

	if err := s.repo.ReplacePermissions(ctx, roleID, permissionKeys, entry); err != nil {
		s.logger.Error("failed to update role permissions", "role_id", roleID, "error", err)
		return err
	}

	s.logger.Info("role permissions updated", "role_id", roleID, "actor_id", actor.ID)
	return nil
}

// Deactivate marks a role inactive. Users keeping the role can still log in,
// but permission resolution yields nothing for an inactive role. Roles are
// never hard-deleted while users reference them, so deactivation is the only
// delete this service offers.
func (s *Service) Deactivate(ctx context.Context, actor *auth.User, roleID int64) error {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}

	count, err := s.repo.CountActiveUsers(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Warn("deactivating role still assigned to active users",
			"role_id", roleID, "active_users", count)
	}

	entry := audit.NewEntry(actor.ID, audit.ActionDelete, ResourceType, r.Name, map[string]any{
		"role_id":      roleID,
		"active_users": count,
	})

	if err := s.repo.Deactivate(ctx, roleID, entry); err != nil {
		if errors.Is(err, internal.ErrRoleNotFound) {
			return err
		}
		s.logger.Error("failed to deactivate role", "role_id", roleID, "error", err)
		return err
	}

	s.logger.Info("role deactivated", "role_id", roleID, "actor_id", actor.ID)
	return nil
}
