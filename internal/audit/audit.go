package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionAccess Action = "ACCESS"
)

// Entry is one immutable audit record. There is deliberately no update or
// delete path anywhere in this package.
type Entry struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	ActorID      int64     `gorm:"column:actor_id"`
	Action       Action    `gorm:"column:action"`
	ResourceType string    `gorm:"column:resource_type"`
	ResourceID   string    `gorm:"column:resource_id"`
	Metadata     string    `gorm:"column:metadata"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Entry) TableName() string {
	return "audit_logs"
}

// NewEntry builds an entry with JSON-encoded metadata. Unencodable metadata
// degrades to an empty object rather than losing the entry; the loss itself
// is logged so the trail stays honest about it.
func NewEntry(actorID int64, action Action, resourceType, resourceID string, metadata map[string]any) *Entry {
	encoded := "{}"
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			encoded = string(raw)
		} else {
			slog.Warn("audit metadata not JSON-encodable, recording empty object",
				"error", err,
				"action", action,
				"resource_type", resourceType,
				"resource_id", resourceID)
		}
	}
	return &Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     encoded,
		CreatedAt:    time.Now(),
	}
}

type EntryView struct {
	ID           int64           `json:"id"`
	ActorID      int64           `json:"actor_id"`
	Action       Action          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (e *Entry) ToView() EntryView {
	metadata := json.RawMessage(e.Metadata)
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return EntryView{
		ID:           e.ID,
		ActorID:      e.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Metadata:     metadata,
		CreatedAt:    e.CreatedAt,
	}
}

// Query filters the read-only audit listing.
type Query struct {
	ActorID      *int64
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// Recorder appends an entry on its own connection. Used for sensitive reads
// where there is no enclosing transaction; the caller must treat a failure as
// fatal for the operation.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// TxRecorder appends inside a caller-owned transaction so the entry commits
// atomically with the mutation it describes, or not at all.
type TxRecorder interface {
	RecordTx(tx *gorm.DB, entry *Entry) error
}

type Repository interface {
	Recorder
	TxRecorder
	Search(ctx context.Context, q Query) ([]*Entry, error)
}
