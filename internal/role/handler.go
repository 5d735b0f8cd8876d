package role

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	internal "github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/auth"
	"github.com/frahmantamala/document-management/internal/transport"
	"github.com/frahmantamala/document-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		service:     service,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), actor, dto)
	if err != nil {
		h.handleRoleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoleID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleRoleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.handleRoleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, roles)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.handleRoleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, permissions)
}

func (h *Handler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseRoleID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	var dto UpdatePermissionsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdatePermissions(r.Context(), actor, id, dto.PermissionKeys); err != nil {
		h.handleRoleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseRoleID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	if err := h.service.Deactivate(r.Context(), actor, id); err != nil {
		h.handleRoleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseRoleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleRoleError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.WriteError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	var appErr *internal.AppError
	if errors.As(err, &appErr) {
		h.HandleServiceError(w, appErr)
		return
	}

	h.HandleServiceError(w, err)
}
