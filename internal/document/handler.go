package document

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/document-management/internal/auth"
	"github.com/frahmantamala/document-management/internal/transport"
	"github.com/frahmantamala/document-management/pkg/logger"
)

// maxUploadMemory bounds multipart parsing memory; larger files spill to disk.
const maxUploadMemory = 32 << 20

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	dto, file, err := h.parseUpload(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	doc, err := h.Service.Upload(r.Context(), user, dto, file)
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "id")
	if documentID == "" {
		h.WriteError(w, http.StatusBadRequest, "missing document id")
		return
	}

	dto, file, err := h.parseUpload(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	version, err := h.Service.UploadVersion(r.Context(), user, documentID, dto, file)
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, version)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	docs, err := h.Service.List(r.Context(), user, limit, offset)
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	versions, err := h.Service.ListVersions(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	version := 0
	if versionStr := r.URL.Query().Get("version"); versionStr != "" {
		v, err := strconv.Atoi(versionStr)
		if err != nil || v < 1 {
			h.WriteError(w, http.StatusBadRequest, "invalid version")
			return
		}
		version = v
	}

	content, ver, err := h.Service.Download(r.Context(), user, chi.URLParam(r, "id"), version)
	if err != nil {
		h.handleDocumentError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", ver.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(ver.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ver.FileName))
	if _, err := io.Copy(w, content); err != nil {
		h.Logger.Error("download stream interrupted", "error", err, "document_id", ver.DocumentID, "version", ver.Version)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.Service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		h.handleDocumentError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseUpload(r *http.Request) (UploadDTO, io.ReadSeekCloser, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return UploadDTO{}, nil, fmt.Errorf("invalid multipart request")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return UploadDTO{}, nil, fmt.Errorf("missing file field")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return UploadDTO{
		FileName:    header.Filename,
		ContentType: contentType,
	}, file, nil
}

func (h *Handler) handleDocumentError(w http.ResponseWriter, err error) {
	if _, ok := err.(ValidationError); ok {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.HandleServiceError(w, err)
}
