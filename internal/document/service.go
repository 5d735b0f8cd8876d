package document

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

type ServiceAPI interface {
	Upload(ctx context.Context, user *auth.User, dto UploadDTO, content io.Reader) (*Document, error)
	UploadVersion(ctx context.Context, user *auth.User, documentID string, dto UploadDTO, content io.Reader) (*DocumentVersion, error)
	Get(ctx context.Context, user *auth.User, documentID string) (*Document, error)
	List(ctx context.Context, user *auth.User, limit, offset int) ([]*Document, error)
	ListVersions(ctx context.Context, user *auth.User, documentID string) ([]*DocumentVersion, error)
	Download(ctx context.Context, user *auth.User, documentID string, version int) (io.ReadCloser, *DocumentVersion, error)
	Delete(ctx context.Context, user *auth.User, documentID string) error
}

// Service enforces ownership scoping and drives versioned uploads. The
// authorization gate has already checked the route's permission key before
// any method here runs; what remains is the owner-vs-_all distinction, which
// needs the loaded resource.
type Service struct {
	repo     Repository
	storage  Storage
	recorder audit.Recorder
	logger   *slog.Logger
}

func NewService(repo Repository, storage Storage, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		storage:  storage,
		recorder: recorder,
		logger:   logger,
	}
}

// Upload creates a document with version 1. Content write, version row,
// current-version pointer and the CREATE audit entry commit as one unit.
func (s *Service) Upload(ctx context.Context, user *auth.User, dto UploadDTO, content io.Reader) (*Document, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &Document{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Name:      dto.FileName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var written []int
	build := func(next int) (*DocumentVersion, error) {
		rewind(content)
		path, size, err := s.storage.Save(doc.ID, next, content)
		if err != nil {
			return nil, internal.NewStorageError(internal.ErrCodeStorageFailure, err)
		}
		written = append(written, next)
		return &DocumentVersion{
			DocumentID:  doc.ID,
			Version:     next,
			StoragePath: path,
			FileName:    dto.FileName,
			Size:        size,
			ContentType: dto.ContentType,
			CreatedBy:   user.ID,
			CreatedAt:   time.Now(),
		}, nil
	}

	entry := audit.NewEntry(user.ID, audit.ActionCreate, ResourceType, doc.ID, map[string]any{
		"version":   1,
		"file_name": dto.FileName,
	})

	version, err := s.repo.CreateWithFirstVersion(ctx, doc, build, entry)
	if err != nil {
		s.cleanup(doc.ID, written)
		s.logger.Error("document upload failed", "error", err, "user_id", user.ID)
		return nil, s.mapError(err)
	}

	doc.CurrentVersion = version.Version
	s.logger.Info("document created", "document_id", doc.ID, "owner_id", user.ID, "size", version.Size)
	return doc, nil
}

// UploadVersion appends the next version to an existing document. The version
// number is assigned under a row lock inside the repository transaction; two
// concurrent uploads to the same document can never share a number.
func (s *Service) UploadVersion(ctx context.Context, user *auth.User, documentID string, dto UploadDTO, content io.Reader) (*DocumentVersion, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted() {
		return nil, internal.ErrDocumentNotFound
	}
	if err := s.checkOwnership(user, doc, auth.PermDocumentsUpdateAll); err != nil {
		return nil, err
	}

	var written []int
	build := func(next int) (*DocumentVersion, error) {
		rewind(content)
		path, size, err := s.storage.Save(documentID, next, content)
		if err != nil {
			return nil, internal.NewStorageError(internal.ErrCodeStorageFailure, err)
		}
		written = append(written, next)
		return &DocumentVersion{
			DocumentID:  documentID,
			Version:     next,
			StoragePath: path,
			FileName:    dto.FileName,
			Size:        size,
			ContentType: dto.ContentType,
			CreatedBy:   user.ID,
			CreatedAt:   time.Now(),
		}, nil
	}

	entry := audit.NewEntry(user.ID, audit.ActionUpdate, ResourceType, documentID, map[string]any{
		"file_name": dto.FileName,
	})

	version, err := s.repo.AddVersion(ctx, documentID, build, entry)
	if err != nil {
		s.cleanup(documentID, written)
		s.logger.Error("version upload failed", "error", err, "document_id", documentID, "user_id", user.ID)
		return nil, s.mapError(err)
	}

	// a retried build may have left a file for the losing version number
	for _, v := range written {
		if v != version.Version {
			if rmErr := s.storage.Remove(documentID, v); rmErr != nil {
				s.logger.Warn("orphaned version file left behind", "document_id", documentID, "version", v, "error", rmErr)
			}
		}
	}

	s.logger.Info("document version created", "document_id", documentID, "version", version.Version, "user_id", user.ID)
	return version, nil
}

func (s *Service) Get(ctx context.Context, user *auth.User, documentID string) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted() {
		return nil, internal.ErrDocumentNotFound
	}
	if err := s.checkOwnership(user, doc, auth.PermDocumentsViewAll); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns non-deleted documents: all of them for _all holders, otherwise
// the caller's own.
func (s *Service) List(ctx context.Context, user *auth.User, limit, offset int) ([]*Document, error) {
	var ownerID *int64
	if !user.Permissions.Allows(auth.PermDocumentsViewAll) {
		ownerID = &user.ID
	}
	return s.repo.List(ctx, ownerID, limit, offset)
}

func (s *Service) ListVersions(ctx context.Context, user *auth.User, documentID string) ([]*DocumentVersion, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, doc, auth.PermDocumentsViewAll); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, documentID)
}

// Download streams one version's content. version 0 means the current
// version. The ACCESS audit entry is written before any content is handed to
// the caller; if the audit write fails the download fails.
//
// An explicitly requested version of a soft-deleted document stays
// retrievable; only the implicit "current" lookup treats deletion as absence.
func (s *Service) Download(ctx context.Context, user *auth.User, documentID string, version int) (io.ReadCloser, *DocumentVersion, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.IsDeleted() && version == 0 {
		return nil, nil, internal.ErrDocumentNotFound
	}
	if err := s.checkOwnership(user, doc, auth.PermDocumentsViewAll); err != nil {
		return nil, nil, err
	}

	if version == 0 {
		version = doc.CurrentVersion
	}

	ver, err := s.repo.GetVersion(ctx, documentID, version)
	if err != nil {
		return nil, nil, err
	}

	entry := audit.NewEntry(user.ID, audit.ActionAccess, ResourceType, documentID, map[string]any{
		"version": ver.Version,
	})
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error("audit write failed, refusing download", "error", err, "document_id", documentID)
		return nil, nil, internal.NewStorageError(internal.ErrCodeAuditFailure, err)
	}

	content, err := s.storage.Open(documentID, ver.Version)
	if err != nil {
		s.logger.Error("version content missing", "error", err, "document_id", documentID, "version", ver.Version)
		return nil, nil, internal.NewStorageError(internal.ErrCodeStorageFailure, err)
	}

	return content, ver, nil
}

// Delete soft-deletes the document. Versions and stored content are kept.
func (s *Service) Delete(ctx context.Context, user *auth.User, documentID string) error {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.IsDeleted() {
		return internal.ErrDocumentNotFound
	}
	if err := s.checkOwnership(user, doc, auth.PermDocumentsDeleteAll); err != nil {
		return err
	}

	entry := audit.NewEntry(user.ID, audit.ActionDelete, ResourceType, documentID, map[string]any{
		"name": doc.Name,
	})
	if err := s.repo.SoftDelete(ctx, documentID, entry); err != nil {
		s.logger.Error("document delete failed", "error", err, "document_id", documentID)
		return s.mapError(err)
	}

	s.logger.Info("document soft-deleted", "document_id", documentID, "user_id", user.ID)
	return nil
}

// checkOwnership applies the owner-vs-_all rule: holders of the _all key act
// on any document, everyone else only on documents they own.
func (s *Service) checkOwnership(user *auth.User, doc *Document, allKey string) error {
	if user.Permissions.Allows(allKey) {
		return nil
	}
	if doc.OwnerID != user.ID {
		s.logger.Warn("ownership check failed", "document_id", doc.ID, "owner_id", doc.OwnerID, "user_id", user.ID)
		return internal.ErrNotOwner
	}
	return nil
}

func (s *Service) cleanup(documentID string, versions []int) {
	for _, v := range versions {
		if err := s.storage.Remove(documentID, v); err != nil {
			s.logger.Warn("failed to remove orphaned version file", "document_id", documentID, "version", v, "error", err)
		}
	}
}

// rewind resets seekable content so a conflict-retried build re-reads it from
// the start. Multipart file uploads are seekable.
func rewind(content io.Reader) {
	if seeker, ok := content.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}
}

func (s *Service) mapError(err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewStorageError(internal.ErrCodeStorageFailure, err)
}
