package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/document"
)

// DocumentRepository serializes version assignment with a row lock on the
// document plus the unique (document_id, version) constraint as a backstop.
// Every mutation writes its audit entry in the same transaction.
type DocumentRepository struct {
	db    *gorm.DB
	audit audit.TxRecorder
}

func NewDocumentRepository(db *gorm.DB, auditRecorder audit.TxRecorder) document.Repository {
	return &DocumentRepository{db: db, audit: auditRecorder}
}

func (r *DocumentRepository) CreateWithFirstVersion(ctx context.Context, doc *document.Document, build document.VersionBuilder, entry *audit.Entry) (*document.DocumentVersion, error) {
	var created *document.DocumentVersion

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc.CurrentVersion = 1
		if err := tx.Create(doc).Error; err != nil {
			return err
		}

		version, err := build(1)
		if err != nil {
			return err
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}

		created = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddVersion reserves the next version number under a row lock, inserts the
// version and bumps the current-version pointer. A duplicate-version conflict
// gets exactly one retry with a re-read number, then surfaces as Conflict.
func (r *DocumentRepository) AddVersion(ctx context.Context, documentID string, build document.VersionBuilder, entry *audit.Entry) (*document.DocumentVersion, error) {
	version, err := r.addVersionOnce(ctx, documentID, build, entry)
	if isDuplicateKeyErr(err) {
		version, err = r.addVersionOnce(ctx, documentID, build, entry)
		if isDuplicateKeyErr(err) {
			return nil, internal.ErrDuplicateVersion.WithCause(err)
		}
	}
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *DocumentRepository) addVersionOnce(ctx context.Context, documentID string, build document.VersionBuilder, entry *audit.Entry) (*document.DocumentVersion, error) {
	var created *document.DocumentVersion

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document.Document
		query := tx.Where("id = ?", documentID)
		if lock := rowLock(tx); lock != nil {
			query = query.Clauses(lock)
		}
		if err := query.First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrDocumentNotFound
			}
			return err
		}

		next := doc.CurrentVersion + 1
		version, err := build(next)
		if err != nil {
			return err
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		if err := tx.Model(&document.Document{}).
			Where("id = ? AND current_version < ?", documentID, next).
			Updates(map[string]interface{}{
				"current_version": next,
				"updated_at":      time.Now(),
			}).Error; err != nil {
			return err
		}

		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}

		created = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*document.Document, error) {
	// soft-deleted documents are returned; visibility is the service's call
	var doc document.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) GetVersion(ctx context.Context, documentID string, version int) (*document.DocumentVersion, error) {
	var ver document.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND version = ?", documentID, version).
		First(&ver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrVersionNotFound
		}
		return nil, err
	}
	return &ver, nil
}

func (r *DocumentRepository) ListVersions(ctx context.Context, documentID string) ([]*document.DocumentVersion, error) {
	var versions []*document.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("version ASC").
		Find(&versions).Error
	return versions, err
}

func (r *DocumentRepository) List(ctx context.Context, ownerID *int64, limit, offset int) ([]*document.Document, error) {
	query := r.db.WithContext(ctx).Where("deleted_at IS NULL")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}

	var docs []*document.Document
	err := query.Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	return docs, err
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, documentID string, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&document.Document{}).
			Where("id = ? AND deleted_at IS NULL", documentID).
			Updates(map[string]interface{}{
				"deleted_at": time.Now(),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrDocumentNotFound
		}

		if err := r.audit.RecordTx(tx, entry); err != nil {
			return internal.NewStorageError(internal.ErrCodeAuditFailure, err)
		}
		return nil
	})
}

// rowLock returns SELECT ... FOR UPDATE where the dialect supports it.
// sqlite, used by the repository specs, rejects the clause; its single-writer
// lock already serializes those transactions.
func rowLock(tx *gorm.DB) clause.Expression {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	return clause.Locking{Strength: "UPDATE"}
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
