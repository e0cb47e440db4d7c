package vocabulary

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "terrasync/pkg/domain-errors"
	"terrasync/pkg/platform/httputil"
	"terrasync/pkg/requestcontext"
)

// Handler serves read-only vocabulary lookups for operators and tooling.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts vocabulary endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/vocabularies", h.HandleSnapshot)
	r.Get("/vocabularies/{name}", h.HandleGet)
}

// HandleSnapshot handles GET /vocabularies.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "vocabulary snapshot failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleGet handles GET /vocabularies/{name}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	vocab, err := h.service.Lookup(r.Context(), name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if vocab == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown vocabulary "+name))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vocab)
}
