package authapi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error envelope shared by every auth endpoint. Codes are stable strings
// clients switch on; messages are for humans and may change.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

var (
	errBodyMissing  = errors.New("missing request body")
	errBodyTrailing = errors.New("trailing data after json value")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	// Token material flows through these responses; never cache them.
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeDecodeError renders a decodeJSON failure. Oversized bodies get their
// own status so clients do not retry them verbatim.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
}

// decodeJSON reads exactly one JSON value into dst. Unknown fields and
// trailing data are rejected, and the body is capped at maxBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errBodyMissing
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errBodyTrailing
	}
	return nil
}
