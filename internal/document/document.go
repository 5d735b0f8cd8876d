package document

import (
	"context"
	"io"
	"time"

	"github.com/frahmantamala/document-management/internal/audit"
)

const ResourceType = "document"

// Document is the mutable head record. Its id is an opaque uuid so document
// urls are not guessable. Soft deletion hides it from listings; versions and
// stored content survive deletion.
type Document struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	OwnerID        int64      `gorm:"column:owner_id" json:"owner_id"`
	Name           string     `gorm:"column:name" json:"name"`
	CurrentVersion int        `gorm:"column:current_version" json:"current_version"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt      *time.Time `gorm:"column:deleted_at" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// DocumentVersion is immutable once written: version numbers are strictly
// increasing per document from 1, and a version's storage path is never
// reused or updated.
type DocumentVersion struct {
	ID          int64     `gorm:"column:id;primaryKey" json:"-"`
	DocumentID  string    `gorm:"column:document_id" json:"document_id"`
	Version     int       `gorm:"column:version" json:"version"`
	StoragePath string    `gorm:"column:storage_path" json:"-"`
	FileName    string    `gorm:"column:file_name" json:"file_name"`
	Size        int64     `gorm:"column:size" json:"size"`
	ContentType string    `gorm:"column:content_type" json:"content_type"`
	CreatedBy   int64     `gorm:"column:created_by" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DocumentVersion) TableName() string {
	return "document_versions"
}

// VersionBuilder produces the version row for the next version number. It is
// called inside the repository transaction once the number is reserved, and
// may be called again with a re-read number if the first attempt hits a
// duplicate-version conflict.
type VersionBuilder func(next int) (*DocumentVersion, error)

// Repository serializes concurrent version creation at the storage layer: a
// row lock on the document plus the unique (document_id, version) constraint,
// never an in-process mutex, so the guarantee holds across service instances.
// The audit entry passed to each mutation commits in the same transaction.
type Repository interface {
	CreateWithFirstVersion(ctx context.Context, doc *Document, build VersionBuilder, entry *audit.Entry) (*DocumentVersion, error)
	AddVersion(ctx context.Context, documentID string, build VersionBuilder, entry *audit.Entry) (*DocumentVersion, error)
	GetByID(ctx context.Context, id string) (*Document, error)
	GetVersion(ctx context.Context, documentID string, version int) (*DocumentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]*DocumentVersion, error)
	List(ctx context.Context, ownerID *int64, limit, offset int) ([]*Document, error)
	SoftDelete(ctx context.Context, documentID string, entry *audit.Entry) error
}

// Storage persists version content at one path per (document, version),
// write-once.
type Storage interface {
	Save(documentID string, version int, content io.Reader) (path string, size int64, err error)
	Open(documentID string, version int) (io.ReadCloser, error)
	Remove(documentID string, version int) error
}
