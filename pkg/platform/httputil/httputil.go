// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "terrasync/pkg/domain-errors"
	"terrasync/pkg/platform/sentinel"
)

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError maps a domain or sentinel error onto the JSON error envelope.
// Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := classify(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.ErrorDescription = err.Error()
	} else {
		body.Error = "internal_error"
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

func classify(err error) dErrors.Code {
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeNotFound
	case errors.Is(err, sentinel.ErrDuplicate):
		return dErrors.CodeDuplicate
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.CodeConflict
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.CodeInvalidState
	default:
		return dErrors.CodeInternal
	}
}

// DecodeAndPrepare decodes the request body into T, replying 400 on
// malformed JSON so handlers only see well-formed requests.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger,
	ctx context.Context, requestID string) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "malformed request body",
			"request_id", requestID, "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	return req, true
}
