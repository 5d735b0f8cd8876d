package role

import (
	"context"
	"time"

	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

const ResourceType = "role"

// Role owns a set of permissions via role_permissions. A role with active
// users is never hard-deleted, only deactivated; the delete operation here is
// deactivation by construction.
type Role struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	IsActive  bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	Permissions []string `gorm:"-" json:"permissions"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission is a catalog entry. Keys are unique and append-only: a key
// referenced by any token still in its validity window must never be renamed,
// so the catalog has no rename operation at all.
type Permission struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Key       string    `gorm:"column:key" json:"key"`
	Module    string    `gorm:"column:module" json:"module"`
	IsActive  bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	RoleID       int64 `gorm:"column:role_id"`
	PermissionID int64 `gorm:"column:permission_id"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type Repository interface {
	Create(ctx context.Context, r *Role, permissionKeys []string, entry *audit.Entry) error
	GetByID(ctx context.Context, id int64) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	ReplacePermissions(ctx context.Context, roleID int64, permissionKeys []string, entry *audit.Entry) error
	Deactivate(ctx context.Context, roleID int64, entry *audit.Entry) error
	CountActiveUsers(ctx context.Context, roleID int64) (int64, error)
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, dto CreateRoleDTO) (*Role, error)
	Get(ctx context.Context, id int64) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	UpdatePermissions(ctx context.Context, actor *auth.User, roleID int64, permissionKeys []string) error
	Deactivate(ctx context.Context, actor *auth.User, roleID int64) error
}
