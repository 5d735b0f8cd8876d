package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal/audit"
)

// AuditRepository is append-only by construction: it exposes no update or
// delete methods and the audit_logs table has no such statements anywhere in
// the codebase.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) RecordTx(tx *gorm.DB, entry *audit.Entry) error {
	return tx.Create(entry).Error
}

func (r *AuditRepository) Search(ctx context.Context, q audit.Query) ([]*audit.Entry, error) {
	query := r.db.WithContext(ctx).Model(&audit.Entry{})

	if q.ActorID != nil {
		query = query.Where("actor_id = ?", *q.ActorID)
	}
	if q.ResourceType != "" {
		query = query.Where("resource_type = ?", q.ResourceType)
		if q.ResourceID != "" {
			query = query.Where("resource_id = ?", q.ResourceID)
		}
	}
	if q.From != nil {
		query = query.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("created_at <= ?", *q.To)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}

	var entries []*audit.Entry
	err := query.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&entries).Error
	return entries, err
}
