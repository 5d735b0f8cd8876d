package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
)

func TestDocumentService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DocumentService Suite")
}

// Mock repository. The mutex mirrors the serialization the real repository
// gets from its transaction plus row lock: version assignment is atomic with
// the audit write and the current-version bump.
type mockRepository struct {
	mu        sync.Mutex
	documents map[string]*Document
	versions  map[string][]*DocumentVersion
	audits    []*audit.Entry

	createError error
	deleteError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		documents: make(map[string]*Document),
		versions:  make(map[string][]*DocumentVersion),
	}
}

func (m *mockRepository) CreateWithFirstVersion(_ context.Context, doc *Document, build VersionBuilder, entry *audit.Entry) (*DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return nil, m.createError
	}
	version, err := build(1)
	if err != nil {
		return nil, err
	}
	doc.CurrentVersion = 1
	copied := *doc
	m.documents[doc.ID] = &copied
	m.versions[doc.ID] = []*DocumentVersion{version}
	m.audits = append(m.audits, entry)
	return version, nil
}

func (m *mockRepository) AddVersion(_ context.Context, documentID string, build VersionBuilder, entry *audit.Entry) (*DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, internal.ErrDocumentNotFound
	}
	next := doc.CurrentVersion + 1
	version, err := build(next)
	if err != nil {
		return nil, err
	}
	doc.CurrentVersion = next
	m.versions[documentID] = append(m.versions[documentID], version)
	m.audits = append(m.audits, entry)
	return version, nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, internal.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockRepository) GetVersion(_ context.Context, documentID string, version int) (*DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[documentID] {
		if v.Version == version {
			copied := *v
			return &copied, nil
		}
	}
	return nil, internal.ErrVersionNotFound
}

func (m *mockRepository) ListVersions(_ context.Context, documentID string) ([]*DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := append([]*DocumentVersion(nil), m.versions[documentID]...)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

func (m *mockRepository) List(_ context.Context, ownerID *int64, limit, offset int) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*Document
	for _, doc := range m.documents {
		if doc.IsDeleted() {
			continue
		}
		if ownerID != nil && doc.OwnerID != *ownerID {
			continue
		}
		copied := *doc
		docs = append(docs, &copied)
	}
	return docs, nil
}

func (m *mockRepository) SoftDelete(_ context.Context, documentID string, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return m.deleteError
	}
	doc, ok := m.documents[documentID]
	if !ok || doc.IsDeleted() {
		return internal.ErrDocumentNotFound
	}
	now := time.Now()
	doc.DeletedAt = &now
	m.audits = append(m.audits, entry)
	return nil
}

func (m *mockRepository) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

// Mock write-once storage backed by a map.
type mockStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	saveError error
	openError error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func storageKey(documentID string, version int) string {
	return fmt.Sprintf("%s/v%d", documentID, version)
}

func (m *mockStorage) Save(documentID string, version int, content io.Reader) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return "", 0, m.saveError
	}
	key := storageKey(documentID, version)
	if _, exists := m.files[key]; exists {
		return "", 0, errors.New("file exists")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", 0, err
	}
	m.files[key] = data
	return key, int64(len(data)), nil
}

func (m *mockStorage) Open(documentID string, version int) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openError != nil {
		return nil, m.openError
	}
	data, ok := m.files[storageKey(documentID, version)]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Remove(documentID string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, storageKey(documentID, version))
	return nil
}

// Mock audit recorder for the access trail.
type mockRecorder struct {
	mu          sync.Mutex
	entries     []*audit.Entry
	recordError error
}

func (m *mockRecorder) Record(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordError != nil {
		return m.recordError
	}
	m.entries = append(m.entries, entry)
	return nil
}

var _ = Describe("DocumentService", func() {
	var (
		service  *Service
		repo     *mockRepository
		storage  *mockStorage
		recorder *mockRecorder

		owner  *auth.User
		other  *auth.User
		admin  *auth.User
		viewer *auth.User
	)

	uploadFor := func(u *auth.User, name string) *Document {
		doc, err := service.Upload(context.Background(), u, UploadDTO{
			FileName:    name,
			ContentType: "text/plain",
		}, strings.NewReader("hello v1"))
		Expect(err).NotTo(HaveOccurred())
		return doc
	}

	BeforeEach(func() {
		repo = newMockRepository()
		storage = newMockStorage()
		recorder = &mockRecorder{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(repo, storage, recorder, logger)

		owner = &auth.User{ID: 1, Email: "owner@example.com", Permissions: auth.NewPermissionSet([]string{
			"documents.create", "documents.view", "documents.update", "documents.delete",
		})}
		other = &auth.User{ID: 2, Email: "other@example.com", Permissions: auth.NewPermissionSet([]string{
			"documents.create", "documents.view", "documents.update", "documents.delete",
		})}
		admin = &auth.User{ID: 3, Email: "admin@example.com", Permissions: auth.NewPermissionSet([]string{"*"})}
		viewer = &auth.User{ID: 4, Email: "viewer@example.com", Permissions: auth.NewPermissionSet([]string{
			"documents.view_all",
		})}
	})

	Describe("Upload", func() {
		It("creates the document at version 1 with content stored", func() {
			doc := uploadFor(owner, "report.txt")

			Expect(doc.CurrentVersion).To(Equal(1))
			Expect(doc.OwnerID).To(Equal(owner.ID))

			content, ver, err := service.Download(context.Background(), owner, doc.ID, 0)
			Expect(err).NotTo(HaveOccurred())
			defer content.Close()
			data, _ := io.ReadAll(content)
			Expect(string(data)).To(Equal("hello v1"))
			Expect(ver.Version).To(Equal(1))
		})

		It("writes exactly one CREATE audit entry", func() {
			doc := uploadFor(owner, "report.txt")

			Expect(repo.audits).To(HaveLen(1))
			Expect(repo.audits[0].Action).To(Equal(audit.ActionCreate))
			Expect(repo.audits[0].ResourceID).To(Equal(doc.ID))
			Expect(repo.audits[0].ActorID).To(Equal(owner.ID))
		})

		It("rejects an empty file name", func() {
			_, err := service.Upload(context.Background(), owner, UploadDTO{ContentType: "text/plain"}, strings.NewReader("x"))
			Expect(err).To(HaveOccurred())
		})

		It("writes no audit entry when the repository fails", func() {
			repo.createError = errors.New("db down")

			_, err := service.Upload(context.Background(), owner, UploadDTO{
				FileName:    "report.txt",
				ContentType: "text/plain",
			}, strings.NewReader("x"))

			Expect(err).To(HaveOccurred())
			Expect(repo.auditCount()).To(BeZero())
		})
	})

	Describe("UploadVersion", func() {
		It("assigns the next version and moves the current pointer", func() {
			doc := uploadFor(owner, "report.txt")

			ver, err := service.UploadVersion(context.Background(), owner, doc.ID, UploadDTO{
				FileName:    "report-v2.txt",
				ContentType: "text/plain",
			}, strings.NewReader("hello v2"))

			Expect(err).NotTo(HaveOccurred())
			Expect(ver.Version).To(Equal(2))

			got, err := service.Get(context.Background(), owner, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentVersion).To(Equal(2))
		})

		It("keeps earlier versions downloadable", func() {
			doc := uploadFor(owner, "report.txt")
			_, err := service.UploadVersion(context.Background(), owner, doc.ID, UploadDTO{
				FileName:    "report.txt",
				ContentType: "text/plain",
			}, strings.NewReader("hello v2"))
			Expect(err).NotTo(HaveOccurred())

			content, ver, err := service.Download(context.Background(), owner, doc.ID, 1)
			Expect(err).NotTo(HaveOccurred())
			defer content.Close()
			data, _ := io.ReadAll(content)
			Expect(string(data)).To(Equal("hello v1"))
			Expect(ver.Version).To(Equal(1))
		})

		It("numbers concurrent uploads 1..N with no gaps or duplicates", func() {
			doc := uploadFor(owner, "report.txt")

			const uploaders = 10
			var wg sync.WaitGroup
			for i := 0; i < uploaders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := service.UploadVersion(context.Background(), owner, doc.ID, UploadDTO{
						FileName:    fmt.Sprintf("v-%d.txt", i),
						ContentType: "text/plain",
					}, strings.NewReader(fmt.Sprintf("content %d", i)))
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			versions, err := service.ListVersions(context.Background(), owner, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(versions).To(HaveLen(uploaders + 1))
			for i, v := range versions {
				Expect(v.Version).To(Equal(i + 1))
			}

			got, err := service.Get(context.Background(), owner, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentVersion).To(Equal(uploaders + 1))
		})

		It("denies a non-owner without the update_all grant", func() {
			doc := uploadFor(owner, "report.txt")

			_, err := service.UploadVersion(context.Background(), other, doc.ID, UploadDTO{
				FileName:    "x.txt",
				ContentType: "text/plain",
			}, strings.NewReader("x"))

			Expect(err).To(MatchError(internal.ErrNotOwner))
			Expect(repo.auditCount()).To(Equal(1), "denied mutation must not add audit entries")
		})

		It("allows a non-owner holding the global wildcard", func() {
			doc := uploadFor(owner, "report.txt")

			ver, err := service.UploadVersion(context.Background(), admin, doc.ID, UploadDTO{
				FileName:    "x.txt",
				ContentType: "text/plain",
			}, strings.NewReader("x"))

			Expect(err).NotTo(HaveOccurred())
			Expect(ver.Version).To(Equal(2))
			Expect(ver.CreatedBy).To(Equal(admin.ID))
		})

		It("refuses uploads to a deleted document", func() {
			doc := uploadFor(owner, "report.txt")
			Expect(service.Delete(context.Background(), owner, doc.ID)).To(Succeed())

			_, err := service.UploadVersion(context.Background(), owner, doc.ID, UploadDTO{
				FileName:    "x.txt",
				ContentType: "text/plain",
			}, strings.NewReader("x"))
			Expect(err).To(MatchError(internal.ErrDocumentNotFound))
		})
	})

	Describe("Get", func() {
		It("denies a non-owner without view_all", func() {
			doc := uploadFor(owner, "report.txt")

			_, err := service.Get(context.Background(), other, doc.ID)
			Expect(err).To(MatchError(internal.ErrNotOwner))
		})

		It("allows a view_all holder on any document", func() {
			doc := uploadFor(owner, "report.txt")

			got, err := service.Get(context.Background(), viewer, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(doc.ID))
		})
	})

	Describe("List", func() {
		It("scopes to the caller's own documents without view_all", func() {
			uploadFor(owner, "mine.txt")
			uploadFor(other, "theirs.txt")

			docs, err := service.List(context.Background(), owner, 50, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].OwnerID).To(Equal(owner.ID))
		})

		It("returns everything for a view_all holder", func() {
			uploadFor(owner, "mine.txt")
			uploadFor(other, "theirs.txt")

			docs, err := service.List(context.Background(), viewer, 50, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})
	})

	Describe("Download", func() {
		It("records the ACCESS entry before returning content", func() {
			doc := uploadFor(owner, "report.txt")

			content, _, err := service.Download(context.Background(), owner, doc.ID, 0)
			Expect(err).NotTo(HaveOccurred())
			content.Close()

			Expect(recorder.entries).To(HaveLen(1))
			Expect(recorder.entries[0].Action).To(Equal(audit.ActionAccess))
			Expect(recorder.entries[0].ResourceID).To(Equal(doc.ID))
		})

		It("refuses the download when the audit write fails", func() {
			doc := uploadFor(owner, "report.txt")
			recorder.recordError = errors.New("audit store down")

			_, _, err := service.Download(context.Background(), owner, doc.ID, 0)
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAuditFailure))
		})

		It("denies a non-owner and records no ACCESS entry", func() {
			doc := uploadFor(owner, "report.txt")

			_, _, err := service.Download(context.Background(), other, doc.ID, 0)
			Expect(err).To(MatchError(internal.ErrNotOwner))
			Expect(recorder.entries).To(BeEmpty())
		})

		It("returns version-not-found for a number that was never assigned", func() {
			doc := uploadFor(owner, "report.txt")

			_, _, err := service.Download(context.Background(), owner, doc.ID, 42)
			Expect(err).To(MatchError(internal.ErrVersionNotFound))
		})

		Context("after soft deletion", func() {
			It("hides the current version", func() {
				doc := uploadFor(owner, "report.txt")
				Expect(service.Delete(context.Background(), owner, doc.ID)).To(Succeed())

				_, _, err := service.Download(context.Background(), owner, doc.ID, 0)
				Expect(err).To(MatchError(internal.ErrDocumentNotFound))
			})

			It("still serves an explicitly requested version", func() {
				doc := uploadFor(owner, "report.txt")
				Expect(service.Delete(context.Background(), owner, doc.ID)).To(Succeed())

				content, ver, err := service.Download(context.Background(), owner, doc.ID, 1)
				Expect(err).NotTo(HaveOccurred())
				defer content.Close()
				Expect(ver.Version).To(Equal(1))
			})
		})
	})

	Describe("Delete", func() {
		It("soft-deletes and writes a DELETE audit entry", func() {
			doc := uploadFor(owner, "report.txt")

			Expect(service.Delete(context.Background(), owner, doc.ID)).To(Succeed())

			_, err := service.Get(context.Background(), owner, doc.ID)
			Expect(err).To(MatchError(internal.ErrDocumentNotFound))

			Expect(repo.audits).To(HaveLen(2))
			Expect(repo.audits[1].Action).To(Equal(audit.ActionDelete))
		})

		It("fails the second delete", func() {
			doc := uploadFor(owner, "report.txt")
			Expect(service.Delete(context.Background(), owner, doc.ID)).To(Succeed())

			err := service.Delete(context.Background(), owner, doc.ID)
			Expect(err).To(MatchError(internal.ErrDocumentNotFound))
		})

		It("denies a non-owner without delete_all", func() {
			doc := uploadFor(owner, "report.txt")

			err := service.Delete(context.Background(), other, doc.ID)
			Expect(err).To(MatchError(internal.ErrNotOwner))
		})

		It("allows delete_all via the resource wildcard", func() {
			doc := uploadFor(owner, "report.txt")
			wildcardUser := &auth.User{ID: 9, Permissions: auth.NewPermissionSet([]string{"documents.*"})}

			Expect(service.Delete(context.Background(), wildcardUser, doc.ID)).To(Succeed())
		})
	})
})
