package web

import (
	"encoding/json"
	"net/http"

	"backbar/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusForKind maps a core error kind to an HTTP status. Lock-window
// violations read as "forbidden now" rather than "bad request", and every
// state collision (stock, duplicate close, integrity) is a 409.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindLocked:
		return http.StatusForbidden
	case core.KindInsufficientStock, core.KindDuplicateClose, core.KindConflict, core.KindIntegrity:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps a core error to a structured JSON response. Plain errors
// (no Kind) surface as 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	code := string(kind)
	if kind == "" {
		message = "internal server error"
		code = "INTERNAL_ERROR"
	}
	writeRawError(w, r, message, code, status)
}

func writeRawError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON strictly decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Errorf(core.KindValidation, "invalid request body: %v", err)
	}
	return nil
}
