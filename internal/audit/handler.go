package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/document-management/internal/transport"
	"github.com/frahmantamala/document-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Search handles GET /audit-logs with user_id, resource_type+resource_id and
// from/to time-range filters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := Query{
		ResourceType: r.URL.Query().Get("resource_type"),
		ResourceID:   r.URL.Query().Get("resource_id"),
	}

	if actorStr := r.URL.Query().Get("user_id"); actorStr != "" {
		actorID, err := strconv.ParseInt(actorStr, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		q.ActorID = &actorID
	}

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid from timestamp, expected RFC3339")
			return
		}
		q.From = &from
	}

	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid to timestamp, expected RFC3339")
			return
		}
		q.To = &to
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			q.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			q.Offset = o
		}
	}

	entries, err := h.Service.Search(r.Context(), q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
