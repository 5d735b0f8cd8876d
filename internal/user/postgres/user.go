package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
	"github.com/frahmantamala/document-management/internal/user"
)

type UserRepository struct {
	db    *gorm.DB
	audit audit.TxRecorder
}

func NewUserRepository(db *gorm.DB, auditRecorder audit.TxRecorder) user.Repository {
	return &UserRepository{db: db, audit: auditRecorder}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User, entry *audit.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
	if isDuplicateKeyErr(err) {
		return internal.ErrDuplicateEmail.WithCause(err)
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	r.fillRoleName(ctx, &u)
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	var users []*user.User
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		r.fillRoleName(ctx, u)
	}
	return users, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID int64, roleID *int64, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&user.User{}).
			Where("id = ? AND deleted_at IS NULL", userID).
			Updates(map[string]interface{}{
				"role_id":    roleID,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
}

func (r *UserRepository) UpdateStatus(ctx context.Context, userID int64, status auth.UserStatus, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&user.User{}).
			Where("id = ? AND deleted_at IS NULL", userID).
			Updates(map[string]interface{}{
				"status":     status,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}
		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
}

func (r *UserRepository) fillRoleName(ctx context.Context, u *user.User) {
	if u.RoleID == nil {
		return
	}
	var name string
	row := r.db.WithContext(ctx).Raw("SELECT name FROM roles WHERE id = ?", *u.RoleID).Row()
	if err := row.Scan(&name); err == nil {
		u.RoleName = name
	}
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
