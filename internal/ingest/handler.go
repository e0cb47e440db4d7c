package ingest

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	dErrors "terrasync/pkg/domain-errors"
	"terrasync/pkg/platform/httputil"
	"terrasync/pkg/requestcontext"
)

const defaultListLimit = 50

// Handler exposes the operator-facing package endpoints. Device uploads come
// in through the sync handler, not here.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts package endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/packages", h.HandleList)
	r.Get("/packages/{packageID}", h.HandleGet)
	r.Post("/packages/{packageID}/approve", h.HandleApprove)
	r.Post("/packages/{packageID}/commit", h.HandleCommit)
	r.Post("/packages/{packageID}/cancel", h.HandleCancel)
}

// PackageResponse is the wire representation of an import package.
type PackageResponse struct {
	ID            string    `json:"id"`
	PackageNumber string    `json:"package_number"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	CreatedAt     time.Time `json:"created_at"`
	ExportedAt    time.Time `json:"exported_at"`
	CollectorID   string    `json:"collector_id"`
	DeviceID      string    `json:"device_id"`

	Checksum         string `json:"checksum"`
	SignaturePresent bool   `json:"signature_present"`
	SignatureValid   bool   `json:"signature_valid"`
	SchemaVersion    string `json:"schema_version"`

	RecordCounts    map[string]int           `json:"record_counts"`
	VocabVersions   map[string]string        `json:"vocabulary_versions"`
	VocabCompatible bool                     `json:"vocabulary_compatible"`
	VocabIssues     []vocabulary.CompatIssue `json:"vocabulary_issues,omitempty"`

	ErrorCount   int                      `json:"error_count"`
	WarningCount int                      `json:"warning_count"`
	LevelResults []validation.LevelResult `json:"level_results,omitempty"`

	ConflictCount     int  `json:"conflict_count"`
	ConflictsResolved bool `json:"conflicts_resolved"`

	CommitSucceeded int `json:"commit_succeeded"`
	CommitFailed    int `json:"commit_failed"`
	CommitSkipped   int `json:"commit_skipped"`

	Status       Status `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`
}

func fromPackage(p *ImportPackage) PackageResponse {
	return PackageResponse{
		ID:               p.ID.String(),
		PackageNumber:    p.PackageNumber,
		FileName:         p.FileName,
		FileSize:         p.FileSize,
		CreatedAt:        p.CreatedAt,
		ExportedAt:       p.ExportedAt,
		CollectorID:      p.CollectorID.String(),
		DeviceID:         p.DeviceID,
		Checksum:         p.Checksum,
		SignaturePresent: p.SignaturePresent,
		SignatureValid:   p.SignatureValid,
		SchemaVersion:    p.SchemaVersion,
		RecordCounts:     p.RecordCounts,
		VocabVersions:    p.VocabVersions,
		VocabCompatible:  p.VocabCompatible,
		VocabIssues:      p.VocabIssues,
		ErrorCount:       p.ErrorCount,
		WarningCount:     p.WarningCount,
		LevelResults:     p.LevelResults,
		ConflictCount:    p.ConflictCount,
		ConflictsResolved: p.ConflictsResolved,
		CommitSucceeded:  p.CommitSucceeded,
		CommitFailed:     p.CommitFailed,
		CommitSkipped:    p.CommitSkipped,
		Status:           p.Status,
		StatusReason:     p.StatusReason,
	}
}

// HandleList handles GET /packages?limit=N, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	packages, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "package listing failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]PackageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, fromPackage(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"packages": out, "count": len(out)})
}

// HandleGet handles GET /packages/{packageID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	pkgID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), pkgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromPackage(p))
}

// HandleApprove handles POST /packages/{packageID}/approve: an operator
// accepts the warning-level findings so flagged records become committable.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	pkgID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	approved, err := h.service.ApproveRecords(ctx, pkgID)
	if err != nil {
		h.logger.WarnContext(ctx, "record approval rejected",
			"request_id", requestID, "package_id", pkgID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"approved": approved})
}

// HandleCommit handles POST /packages/{packageID}/commit.
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	pkgID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Commit(ctx, pkgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "package commit failed",
			"request_id", requestID, "package_id", pkgID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "package commit finished",
		"request_id", requestID,
		"package", p.PackageNumber,
		"status", string(p.Status),
		"succeeded", p.CommitSucceeded,
		"failed", p.CommitFailed,
		"skipped", p.CommitSkipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromPackage(p))
}

// CancelRequest carries the operator's reason for aborting a package.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// HandleCancel handles POST /packages/{packageID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	pkgID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "cancellation reason is required"))
		return
	}
	p, err := h.service.Cancel(ctx, pkgID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromPackage(p))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.PackageID, bool) {
	pkgID, err := id.ParsePackageID(chi.URLParam(r, "packageID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed package id"))
		return id.PackageID{}, false
	}
	return pkgID, true
}
