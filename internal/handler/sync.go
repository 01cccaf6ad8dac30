package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"museum_nav/internal/errs"
	"museum_nav/internal/models"
	"museum_nav/internal/service"
)

const msgOperationsArray = "Operations must be an array"

type syncRequest struct {
	Operations json.RawMessage `json:"operations"`
}

// POST /api/sync
func (h *Handler) Sync(c *gin.Context) {
	var req syncRequest
	if err := decodeJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	raw := bytes.TrimSpace(req.Operations)
	if len(raw) == 0 || raw[0] != '[' {
		h.respondError(c, errs.Validation(msgOperationsArray))
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		h.respondError(c, errs.Validation(msgOperationsArray))
		return
	}

	pending := make([]service.PendingOperation, 0, len(items))
	for _, item := range items {
		pending = append(pending, decodeSyncOperation(item))
	}

	result := h.services.Sync.SynchronizePending(c.Request.Context(), mustPrincipal(c).UserID, pending)

	respond(c, http.StatusOK, result, "Sync completed")
}

// decodeSyncOperation decodes one queued item. An ill-typed item keeps
// whatever identifying fields are readable so the failure can be reported.
func decodeSyncOperation(item json.RawMessage) service.PendingOperation {
	var operation models.SyncOperation
	if err := json.Unmarshal(item, &operation); err == nil {
		return service.PendingOperation{Operation: operation}
	}

	var loose map[string]any
	_ = json.Unmarshal(item, &loose)

	partial := models.SyncOperation{}
	if v, ok := loose["operation_type"].(string); ok {
		partial.OperationType = v
	}
	if v, ok := loose["exhibit_id"].(float64); ok && v == float64(int64(v)) {
		partial.ExhibitID = int64(v)
	}

	return service.PendingOperation{
		Operation: partial,
		Err:       errs.Validation(msgInvalidInputTypes),
	}
}
