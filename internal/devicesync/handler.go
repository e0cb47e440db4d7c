package devicesync

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"terrasync/internal/container"
	"terrasync/internal/platform/middleware"
	id "terrasync/pkg/domain"
	dErrors "terrasync/pkg/domain-errors"
	"terrasync/pkg/platform/httputil"
	"terrasync/pkg/requestcontext"
)

// Handler exposes the device sync protocol. Every route sits behind the
// collector auth middleware, so the context always carries a collector and
// device identity.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts sync endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sync/sessions", h.HandleDownload)
	r.Post("/sync/packages", h.HandleUpload)
	r.Post("/sync/sessions/{sessionID}/acknowledge", h.HandleAcknowledge)
	r.Post("/sync/sessions/{sessionID}/close", h.HandleClose)
}

// HandleDownload handles POST /sync/sessions: opens a session and returns
// the collector's assignments plus the current vocabulary snapshot.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	collectorID := requestcontext.CollectorID(ctx)
	if collectorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	resp, err := h.service.DownloadAssignments(ctx, collectorID,
		requestcontext.DeviceID(ctx), middleware.DeviceDescription(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "assignment download failed",
			"request_id", requestID, "collector_id", collectorID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "sync session opened",
		"request_id", requestID,
		"session_id", resp.SessionID,
		"collector_id", collectorID,
		"assignments", len(resp.Bundles),
	)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// UploadRequest carries one exported package. Payload is the raw container
// bytes, base64 in transit; the manifest checksum covers exactly these bytes.
type UploadRequest struct {
	SessionID string              `json:"session_id,omitempty"`
	Manifest  *container.Manifest `json:"manifest"`
	Payload   []byte              `json:"payload"`
}

// HandleUpload handles POST /sync/packages.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	collectorID := requestcontext.CollectorID(ctx)
	if collectorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[UploadRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Manifest == nil || len(req.Payload) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "manifest and payload are required"))
		return
	}
	var sessionID id.SessionID
	if req.SessionID != "" {
		parsed, err := id.ParseSessionID(req.SessionID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed session id"))
			return
		}
		sessionID = parsed
	}

	outcome, err := h.service.UploadPackage(ctx, sessionID, req.Manifest, req.Payload, collectorID)
	if err != nil {
		h.logger.ErrorContext(ctx, "package upload failed",
			"request_id", requestID,
			"collector_id", collectorID,
			"file", req.Manifest.FileName,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusAccepted
	switch {
	case outcome.Duplicate:
		status = http.StatusOK
	case outcome.Quarantined:
		status = http.StatusUnprocessableEntity
	}
	h.logger.InfoContext(ctx, "package upload finished",
		"request_id", requestID,
		"collector_id", collectorID,
		"package_id", outcome.PackageID,
		"status", outcome.Status,
		"duplicate", outcome.Duplicate,
		"quarantined", outcome.Quarantined,
	)
	httputil.WriteJSON(w, status, outcome)
}

// AcknowledgeRequest lists the assignments the device has confirmed receiving.
type AcknowledgeRequest struct {
	AssignmentIDs []string `json:"assignment_ids"`
}

// HandleAcknowledge handles POST /sync/sessions/{sessionID}/acknowledge.
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	collectorID := requestcontext.CollectorID(ctx)
	if collectorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed session id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[AcknowledgeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if len(req.AssignmentIDs) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "assignment_ids must not be empty"))
		return
	}
	assignmentIDs := make([]id.AssignmentID, 0, len(req.AssignmentIDs))
	for _, raw := range req.AssignmentIDs {
		aid, err := id.ParseAssignmentID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed assignment id "+raw))
			return
		}
		assignmentIDs = append(assignmentIDs, aid)
	}

	result, err := h.service.Acknowledge(ctx, sessionID, assignmentIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// CloseRequest ends a sync cycle. A non-empty error message closes the
// session as failed.
type CloseRequest struct {
	ErrorMessage string `json:"error_message,omitempty"`
}

// HandleClose handles POST /sync/sessions/{sessionID}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	collectorID := requestcontext.CollectorID(ctx)
	if collectorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed session id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CloseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.CloseSession(ctx, sessionID, req.ErrorMessage)
	if err != nil {
		h.logger.ErrorContext(ctx, "session close failed",
			"request_id", requestID, "session_id", sessionID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "sync session closed",
		"request_id", requestID,
		"session_id", sessionID,
		"status", session.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, session)
}
