package conflict

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "terrasync/pkg/domain"
	dErrors "terrasync/pkg/domain-errors"
	"terrasync/pkg/platform/httputil"
	"terrasync/pkg/requestcontext"
)

// Handler wires the review workflow endpoints to the conflict service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts conflict endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/conflicts", h.HandleQueue)
	r.Get("/conflicts/{conflictID}", h.HandleGet)
	r.Post("/conflicts/{conflictID}/resolve", h.HandleResolve)
	r.Post("/conflicts/{conflictID}/escalate", h.HandleEscalate)
	r.Post("/conflicts/{conflictID}/review", h.HandleReview)
}

// ConflictResponse is the wire representation of a conflict.
type ConflictResponse struct {
	ID          string               `json:"id"`
	Number      string               `json:"number"`
	PackageID   string               `json:"package_id"`
	Type        Type                 `json:"type"`
	EntityKind  string               `json:"entity_kind"`
	First       EntityRef            `json:"first"`
	Second      EntityRef            `json:"second"`
	Score       float64              `json:"score"`
	Confidence  Confidence           `json:"confidence"`
	Description string               `json:"description"`
	Criteria    []MatchCriterion     `json:"criteria,omitempty"`
	Comparison  map[string]FieldPair `json:"comparison,omitempty"`
	Status      Status               `json:"status"`
	Action      Action               `json:"action,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	ResolvedBy  string               `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
	Priority    Priority             `json:"priority"`
	TargetHours int                  `json:"target_hours"`
	DetectedAt  time.Time            `json:"detected_at"`
	Overdue     bool                 `json:"overdue"`
	Escalated   bool                 `json:"escalated"`
	Reviews     []ReviewEntry        `json:"reviews,omitempty"`
	Merge       *MergeDetails        `json:"merge,omitempty"`
}

func fromConflict(c *Conflict, now time.Time) ConflictResponse {
	return ConflictResponse{
		ID:          c.ID.String(),
		Number:      c.Number,
		PackageID:   c.PackageID.String(),
		Type:        c.Type,
		EntityKind:  string(c.EntityKind),
		First:       c.First,
		Second:      c.Second,
		Score:       c.Score,
		Confidence:  c.Confidence,
		Description: c.Description,
		Criteria:    c.Criteria,
		Comparison:  c.Comparison,
		Status:      c.Status,
		Action:      c.Action,
		Reason:      c.Reason,
		ResolvedBy:  c.ResolvedBy,
		ResolvedAt:  c.ResolvedAt,
		Priority:    c.Priority,
		TargetHours: c.TargetHours,
		DetectedAt:  c.DetectedAt,
		Overdue:     c.Overdue(now),
		Escalated:   c.Escalated,
		Reviews:     c.ReviewHistory,
		Merge:       c.Merge,
	}
}

// HandleQueue handles GET /conflicts. Open conflicts, priority first.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conflicts, err := h.service.Queue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "conflict queue listing failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]ConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, fromConflict(c, now))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"conflicts": out, "count": len(out)})
}

// HandleGet handles GET /conflicts/{conflictID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conflictID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(ctx, conflictID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromConflict(c, requestcontext.Now(ctx)))
}

// ResolveRequest carries a reviewer's decision on a conflict.
type ResolveRequest struct {
	Action     string        `json:"action"`
	Reason     string        `json:"reason"`
	ResolvedBy string        `json:"resolved_by"`
	Merge      *MergeDetails `json:"merge,omitempty"`
}

// HandleResolve handles POST /conflicts/{conflictID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	conflictID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Resolve(ctx, conflictID, Action(req.Action), req.Reason, req.ResolvedBy, req.Merge)
	if err != nil {
		h.logger.WarnContext(ctx, "conflict resolution rejected",
			"request_id", requestID,
			"conflict_id", conflictID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "conflict resolved",
		"request_id", requestID,
		"conflict", c.Number,
		"action", string(c.Action),
		"resolved_by", c.ResolvedBy,
	)
	httputil.WriteJSON(w, http.StatusOK, fromConflict(c, requestcontext.Now(ctx)))
}

// EscalateRequest flags a conflict for urgent attention.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// HandleEscalate handles POST /conflicts/{conflictID}/escalate.
func (h *Handler) HandleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	conflictID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EscalateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Escalate(ctx, conflictID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromConflict(c, requestcontext.Now(ctx)))
}

// ReviewRequest records a look at a conflict without deciding it.
type ReviewRequest struct {
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

// HandleReview handles POST /conflicts/{conflictID}/review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	conflictID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.RecordReviewAttempt(ctx, conflictID, req.Reviewer, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromConflict(c, requestcontext.Now(ctx)))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.ConflictID, bool) {
	conflictID, err := id.ParseConflictID(chi.URLParam(r, "conflictID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed conflict id"))
		return id.ConflictID{}, false
	}
	return conflictID, true
}
