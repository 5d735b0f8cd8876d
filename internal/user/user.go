package user

import (
	"context"
	"time"

	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

const ResourceType = "user"

// User is the managed account record. Accounts are never hard-deleted; they
// are deactivated and keep their audit history.
type User struct {
	ID           int64           `gorm:"column:id;primaryKey" json:"id"`
	Email        string          `gorm:"column:email" json:"email"`
	Name         string          `gorm:"column:name" json:"name"`
	PasswordHash string          `gorm:"column:password_hash" json:"-"`
	Status       auth.UserStatus `gorm:"column:status" json:"status"`
	RoleID       *int64          `gorm:"column:role_id" json:"role_id,omitempty"`
	RoleName     string          `gorm:"-" json:"role_name,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt    *time.Time      `gorm:"column:deleted_at" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Repository mutations take the audit entry that must commit with them.
type Repository interface {
	Create(ctx context.Context, u *User, entry *audit.Entry) error
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	UpdateRole(ctx context.Context, userID int64, roleID *int64, entry *audit.Entry) error
	UpdateStatus(ctx context.Context, userID int64, status auth.UserStatus, entry *audit.Entry) error
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	AssignRole(ctx context.Context, actor *auth.User, userID int64, roleID *int64) error
	Deactivate(ctx context.Context, actor *auth.User, userID int64) error
}
