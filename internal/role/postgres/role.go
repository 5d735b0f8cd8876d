package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/role"
)

type RoleRepository struct {
	db    *gorm.DB
	audit audit.TxRecorder
}

func NewRoleRepository(db *gorm.DB, auditRecorder audit.TxRecorder) role.Repository {
	return &RoleRepository{db: db, audit: auditRecorder}
}

func (r *RoleRepository) Create(ctx context.Context, rl *role.Role, permissionKeys []string, entry *audit.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rl).Error; err != nil {
			return err
		}
		if err := r.linkPermissions(tx, rl.ID, permissionKeys); err != nil {
			return err
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
	if isDuplicateKeyErr(err) {
		return internal.ErrDuplicateRoleName.WithCause(err)
	}
	return err
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*role.Role, error) {
	var rl role.Role
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	keys, err := r.permissionKeys(ctx, id)
	if err != nil {
		return nil, err
	}
	rl.Permissions = keys
	return &rl, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	var roles []*role.Role
	err := r.db.WithContext(ctx).Order("id ASC").Find(&roles).Error
	if err != nil {
		return nil, err
	}
	for _, rl := range roles {
		keys, err := r.permissionKeys(ctx, rl.ID)
		if err != nil {
			return nil, err
		}
		rl.Permissions = keys
	}
	return roles, nil
}

func (r *RoleRepository) ListPermissions(ctx context.Context) ([]*role.Permission, error) {
	var permissions []*role.Permission
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("key ASC").
		Find(&permissions).Error
	if err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *RoleRepository) ReplacePermissions(ctx context.Context, roleID int64, permissionKeys []string, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&role.Role{}).
			Where("id = ?", roleID).
			Update("updated_at", time.Now())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		if err := tx.Where("role_id = ?", roleID).Delete(&role.RolePermission{}).Error; err != nil {
			return err
		}
		if err := r.linkPermissions(tx, roleID, permissionKeys); err != nil {
			return err
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
}

func (r *RoleRepository) Deactivate(ctx context.Context, roleID int64, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&role.Role{}).
			Where("id = ? AND is_active = ?", roleID, true).
			Updates(map[string]interface{}{
				"is_active":  false,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
}

func (r *RoleRepository) CountActiveUsers(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("users").
		Where("role_id = ? AND status = ? AND deleted_at IS NULL", roleID, "active").
		Count(&count).Error
	return count, err
}

// linkPermissions resolves catalog rows for the given keys and inserts the
// role_permissions links. Unknown keys fail the whole transaction so a role
// never silently loses part of its requested set.
func (r *RoleRepository) linkPermissions(tx *gorm.DB, roleID int64, permissionKeys []string) error {
	for _, key := range permissionKeys {
		var p role.Permission
		err := tx.Where("key = ? AND is_active = ?", key, true).First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrPermissionNotFound.WithDetails(map[string]any{"key": key})
			}
			return err
		}
		link := role.RolePermission{RoleID: roleID, PermissionID: p.ID}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *RoleRepository) permissionKeys(ctx context.Context, roleID int64) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.key
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ? AND p.is_active = true
		ORDER BY p.key`, roleID).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
